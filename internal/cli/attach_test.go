package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/dynis/internal/config"
	"github.com/vvka-141/dynis/internal/store/memory"
	"github.com/vvka-141/dynis/pkg/dynis"
)

func TestAttachCmd_AllItemSets(t *testing.T) {
	s := catalog()
	setQuery(t, s, 10, dynis.Query{"class": "book"})
	setQuery(t, s, 11, dynis.Query{"class": "map"})
	useStore(t, s)

	out, _, err := execute(t, "attach", "--database-url", testDatabaseURL, "--job-id", "nightly")
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, s.Members(10))
	assert.Equal(t, []int64{4}, s.Members(11))
	assert.Contains(t, out, "Job nightly completed: 2 applied, 0 skipped, 0 stopped")
}

func TestAttachCmd_SelectedItemSets(t *testing.T) {
	s := catalog()
	setQuery(t, s, 10, dynis.Query{"class": "book"})
	setQuery(t, s, 11, dynis.Query{"class": "map"})
	useStore(t, s)

	_, _, err := execute(t, "attach", "--database-url", testDatabaseURL, "--item-set-id", "11")
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 3, 4}, s.Members(10), "item set 10 is not processed")
	assert.Equal(t, []int64{4}, s.Members(11))
}

func TestAttachCmd_None(t *testing.T) {
	s := catalog()
	setQuery(t, s, 10, dynis.Query{"class": "book"})
	s.ResetOps()
	useStore(t, s)

	out, _, err := execute(t, "attach", "--database-url", testDatabaseURL, "--none")
	require.NoError(t, err)

	assert.Empty(t, s.Ops())
	assert.Contains(t, out, "0 applied")
}

func TestAttachCmd_Direct(t *testing.T) {
	s := catalog()
	setQuery(t, s, 10, dynis.Query{"class": "book"})
	useStore(t, s)

	_, _, err := execute(t, "attach", "--database-url", testDatabaseURL, "--direct")
	require.NoError(t, err)

	assert.NotEmpty(t, s.OpsOf("LinkItems"))
	assert.Equal(t, []int64{1, 2, 3, 4}, s.Members(10), "direct mode keeps stale members")
}

func TestAttachCmd_NoneAndItemSetIDsAreExclusive(t *testing.T) {
	useStore(t, catalog())

	_, _, err := execute(t, "attach", "--database-url", testDatabaseURL, "--none", "--item-set-id", "10")
	assert.Error(t, err)
}

func TestAttachCmd_MissingDatabaseURL(t *testing.T) {
	t.Setenv(config.EnvDatabaseURL, "")
	t.Setenv(config.EnvDatabaseURLAlt, "")
	useStore(t, catalog())

	_, _, err := execute(t, "attach")
	require.Error(t, err)
	assert.Equal(t, dynis.ExitConfigError, dynis.ExitCodeForError(err))
}

func TestAttachCmd_DatabaseURLFromEnv(t *testing.T) {
	t.Setenv(config.EnvDatabaseURL, testDatabaseURL)
	useStore(t, catalog())

	_, _, err := execute(t, "attach", "--none")
	assert.NoError(t, err)
}

func TestAttachCmd_ConnectionFailure(t *testing.T) {
	orig := openStore
	openStore = func(context.Context, *config.ProjectConfig, dynis.Logger) (dynis.Store, error) {
		return nil, errors.Join(errors.New("dial tcp: refused"), dynis.ErrConnectionFailed)
	}
	t.Cleanup(func() { openStore = orig })

	_, _, err := execute(t, "attach", "--database-url", testDatabaseURL)
	require.Error(t, err)
	assert.Equal(t, dynis.ExitConnectionError, dynis.ExitCodeForError(err))
}

func TestAttachCmd_FatalStoreError(t *testing.T) {
	s := catalog().FailSearch(errors.New("search index offline"))
	setQuery(t, s, 10, dynis.Query{"class": "book"})
	useStore(t, s)

	_, _, err := execute(t, "attach", "--database-url", testDatabaseURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search index offline")
}

func TestBuildRunConfig(t *testing.T) {
	t.Cleanup(func() { attachFlags = attachFlagValues{} })
	cfg := &config.ProjectConfig{Job: config.JobConfig{FullChunkSize: 25, DirectChunkSize: 500}}

	attachFlags = attachFlagValues{}
	run := buildRunConfig(cfg)
	assert.Nil(t, run.ItemSetIDs)
	assert.True(t, run.AllItemSets())
	assert.NotEmpty(t, run.JobID)
	assert.Equal(t, 25, run.FullChunkSize)
	assert.Equal(t, 500, run.DirectChunkSize)

	attachFlags = attachFlagValues{none: true}
	run = buildRunConfig(cfg)
	assert.NotNil(t, run.ItemSetIDs)
	assert.Empty(t, run.ItemSetIDs)

	attachFlags = attachFlagValues{itemSetIDs: []int64{4, 2}, direct: true, jobID: "j1"}
	run = buildRunConfig(cfg)
	assert.Equal(t, []int64{4, 2}, run.ItemSetIDs)
	assert.True(t, run.Direct)
	assert.Equal(t, "j1", run.JobID)
}

func TestAttachCmd_RendersOutcomes(t *testing.T) {
	s := memory.New().AddItemSet(10)
	setQuery(t, s, 10, dynis.Query{"class": "book"})
	useStore(t, s)

	out, _, err := execute(t, "attach", "--database-url", testDatabaseURL, "--job-id", "j2")
	require.NoError(t, err)
	assert.Contains(t, out, "#10")
	assert.Contains(t, out, "applied")
}
