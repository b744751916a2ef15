package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/vvka-141/dynis/internal/query"
	"github.com/vvka-141/dynis/pkg/dynis"
)

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Manage the saved queries of dynamic item sets",
	Long: `An item set is dynamic while it has a saved query. The query uses the
filters of the item search: resource_class_id, resource_template_id,
item_set_id, owner_id, is_public, fulltext_search and property[] groups.`,
}

var queriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dynamic item sets and their query",
	Args:  cobra.NoArgs,
	RunE:  runQueriesList,
}

var queriesGetCmd = &cobra.Command{
	Use:   "get <item_set_id>",
	Short: "Print the query of an item set as JSON",
	Args:  RequireItemSetID,
	RunE:  runQueriesGet,
}

var queriesSetCmd = &cobra.Command{
	Use:   "set <item_set_id>",
	Short: "Save the query of an item set",
	Long: `Set saves the query of an item set, making it dynamic. An empty query
removes it; the members of the item set are kept.

Examples:
  # URL-encoded form, as copied from the advanced search
  dynis queries set 12 --query 'resource_class_id[]=40&property[0][property]=dcterms:subject&property[0][type]=eq&property[0][text]=maps'

  # JSON form, then run the job for this item set
  dynis queries set 12 --json '{"resource_class_id":[40]}' --sync`,
	Args: RequireItemSetID,
	RunE: runQueriesSet,
}

var queriesDeleteCmd = &cobra.Command{
	Use:   "delete <item_set_id>",
	Short: "Remove the query of an item set; its members are kept",
	Args:  RequireItemSetID,
	RunE:  runQueriesDelete,
}

var queriesNormalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Convert legacy queries and remove empty ones",
	Long: `Normalize rewrites every stored query in its structured form. Queries
saved by older releases as URL-encoded strings are decoded, empty values
are dropped, and queries left empty are removed.`,
	Args: cobra.NoArgs,
	RunE: runQueriesNormalize,
}

var queriesFlags struct {
	all       bool
	query     string
	jsonQuery string
	sync      bool
}

func init() {
	rootCmd.AddCommand(queriesCmd)
	queriesCmd.AddCommand(queriesListCmd, queriesGetCmd, queriesSetCmd, queriesDeleteCmd, queriesNormalizeCmd)

	queriesListCmd.Flags().BoolVar(&queriesFlags.all, "all", false, "Include item sets without a query")

	queriesSetCmd.Flags().StringVar(&queriesFlags.query, "query", "", "Query in URL-encoded form")
	queriesSetCmd.Flags().StringVar(&queriesFlags.jsonQuery, "json", "", "Query as a JSON object")
	queriesSetCmd.Flags().BoolVar(&queriesFlags.sync, "sync", false, "Run the job for this item set once saved")
	queriesSetCmd.MarkFlagsMutuallyExclusive("query", "json")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runQueriesList(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	sess, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	saved, err := sess.store.All(ctx)
	if err != nil {
		return err
	}
	ids := slices.Collect(maps.Keys(saved))
	if queriesFlags.all {
		itemSets, err := sess.store.Search(ctx, dynis.KindItemSets, dynis.Query{})
		if err != nil {
			return err
		}
		ids = lo.Union(itemSets, ids)
	}

	t := newTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"ID", "Is dynamic", "Query"})
	for _, id := range query.Sorted(ids) {
		q, dynamic := query.Resolve(saved[id])
		t.AppendRow(table.Row{id, yesNo(dynamic), formatQuery(q)})
	}
	t.Render()
	return nil
}

func runQueriesGet(cmd *cobra.Command, args []string) error {
	id, _ := parseItemSetID(args[0])
	ctx := commandContext(cmd)
	sess, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	saved, ok, err := sess.store.Get(ctx, id)
	if err != nil {
		return err
	}
	q, dynamic := query.Resolve(saved)
	if !ok || !dynamic {
		return fmt.Errorf("item set #%d has no query: %w", id, dynis.ErrNotFound)
	}

	out, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// parseQueryFlags returns the query given by --query or --json.
func parseQueryFlags() (dynis.Query, error) {
	switch {
	case queriesFlags.jsonQuery != "":
		var q dynis.Query
		if err := json.Unmarshal([]byte(queriesFlags.jsonQuery), &q); err != nil {
			return nil, fmt.Errorf("--json must be a JSON object: %v: %w", err, dynis.ErrInvalidUsage)
		}
		return q, nil
	case queriesFlags.query != "":
		return query.ParseLegacy(queriesFlags.query), nil
	default:
		return nil, nil
	}
}

func runQueriesSet(cmd *cobra.Command, args []string) error {
	id, _ := parseItemSetID(args[0])
	q, err := parseQueryFlags()
	if err != nil {
		return err
	}
	q = query.Clean(q)

	ctx := commandContext(cmd)
	sess, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if _, err := sess.store.Read(ctx, dynis.KindItemSets, id); err != nil {
		return err
	}

	if q == nil {
		err = sess.store.Delete(ctx, id)
	} else {
		err = sess.store.Set(ctx, id, q)
	}
	if err != nil {
		return err
	}
	if err := sess.store.Flush(ctx); err != nil {
		return err
	}

	if q == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Item set #%d is no longer dynamic; its items are kept.\n", id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Saved query of item set #%d.\n", id)
	}

	if !queriesFlags.sync {
		return nil
	}
	run := sess.cfg.RunConfig()
	run.ItemSetIDs = []int64{id}
	report, err := runJob(ctx, cmd, sess, run)
	if err != nil {
		return err
	}
	renderReport(cmd.OutOrStdout(), report)
	if report.Stopped {
		return fmt.Errorf("job %s: %w", report.JobID, dynis.ErrStopped)
	}
	return nil
}

func runQueriesDelete(cmd *cobra.Command, args []string) error {
	id, _ := parseItemSetID(args[0])
	ctx := commandContext(cmd)
	sess, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := sess.store.Flush(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed the query of item set #%d; its items are kept.\n", id)
	return nil
}

func runQueriesNormalize(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	sess, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	saved, err := sess.store.All(ctx)
	if err != nil {
		return err
	}

	var converted, removed, unchanged int
	for _, id := range query.Sorted(slices.Collect(maps.Keys(saved))) {
		q, dynamic := query.Resolve(saved[id])
		switch {
		case !dynamic:
			if err := sess.store.Delete(ctx, id); err != nil {
				return err
			}
			removed++
		case saved[id].Legacy != "" || !reflect.DeepEqual(q, saved[id].Query):
			if err := sess.store.Set(ctx, id, q); err != nil {
				return err
			}
			converted++
		default:
			unchanged++
		}
	}
	if err := sess.store.Flush(ctx); err != nil {
		return err
	}

	sess.logger.Info("Normalized {count} queries.", dynis.Fields{"count": len(saved)})
	fmt.Fprintf(cmd.OutOrStdout(), "%d converted, %d removed, %d unchanged\n", converted, removed, unchanged)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatQuery(q dynis.Query) string {
	if len(q) == 0 {
		return ""
	}
	out, err := json.Marshal(q)
	if err != nil {
		return fmt.Sprint(map[string]any(q))
	}
	return string(out)
}
