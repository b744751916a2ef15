package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vvka-141/dynis/internal/config"
	"github.com/vvka-141/dynis/internal/store/memory"
	"github.com/vvka-141/dynis/pkg/dynis"
)

const testDatabaseURL = "postgres://omeka@localhost/omeka"

// resetFlags restores every flag of cmd and its children to its default,
// since rootCmd and the flag variables are shared between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the CLI with args and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// useStore makes the commands run against s, without Redis.
func useStore(t *testing.T, s *memory.Store) {
	t.Helper()
	origStore, origRedis := openStore, openRedis
	openStore = func(context.Context, *config.ProjectConfig, dynis.Logger) (dynis.Store, error) {
		return s, nil
	}
	openRedis = func(context.Context, *config.ProjectConfig, dynis.Logger) (*redis.Client, error) {
		return nil, nil
	}
	t.Cleanup(func() {
		openStore, openRedis = origStore, origRedis
	})
}

// catalog returns item sets 10, 11 and 12 with books 1..3 and map 4.
// Items 2, 3 and 4 belong to 10.
func catalog() *memory.Store {
	s := memory.New().AddItemSet(10).AddItemSet(11).AddItemSet(12)
	s.AddItem(memory.Resource{ID: 1, ClassTerm: "book"})
	s.AddItem(memory.Resource{ID: 2, ClassTerm: "book", ItemSetIDs: []int64{10}})
	s.AddItem(memory.Resource{ID: 3, ClassTerm: "book", ItemSetIDs: []int64{10}})
	s.AddItem(memory.Resource{ID: 4, ClassTerm: "map", ItemSetIDs: []int64{10}})
	return s
}

func setQuery(t *testing.T, s *memory.Store, itemSetID int64, q dynis.Query) {
	t.Helper()
	if err := s.Set(context.Background(), itemSetID, q); err != nil {
		t.Fatal(err)
	}
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
