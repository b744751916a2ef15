package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vvka-141/dynis/internal/config"
	"github.com/vvka-141/dynis/internal/job"
	"github.com/vvka-141/dynis/internal/lock"
	"github.com/vvka-141/dynis/internal/stopsignal"
	"github.com/vvka-141/dynis/pkg/dynis"
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach items to dynamic item sets",
	Long: `Attach runs the job that reconciles dynamic item sets with their query.

Without --item-set-id every item set with a stored query is processed, in
ascending id order. For each one the items matching the query are attached
and the members that no longer match are detached.

Modes:
  full (default)  Items are updated one by one, in chunks, through the
                  regular update path. Chunks are committed as they go.
  --direct        Links are bulk inserted. Much faster on large catalogs,
                  but items are not touched and stale members are kept.

Stopping:
  SIGINT or SIGTERM stops the run between two chunks. When Redis is
  configured, 'dynis stop --job-id ID' does the same from another host.
  A stopped run exits with code 15; running it again resumes the work.

Examples:
  # Process every dynamic item set
  dynis attach

  # Only item sets 12 and 14, bulk mode
  dynis attach --item-set-id 12 --item-set-id 14 --direct`,
	Args: cobra.NoArgs,
	RunE: runAttach,
}

type attachFlagValues struct {
	itemSetIDs []int64
	none       bool
	direct     bool
	jobID      string
	timeout    time.Duration
}

var attachFlags attachFlagValues

func init() {
	rootCmd.AddCommand(attachCmd)

	attachCmd.Flags().Int64SliceVar(&attachFlags.itemSetIDs, "item-set-id", nil,
		"Item set to process (can be specified multiple times)\n"+
			"Default: every item set with a stored query")
	attachCmd.Flags().BoolVar(&attachFlags.none, "none", false,
		"Process no item set; useful to check the configuration")
	attachCmd.Flags().BoolVar(&attachFlags.direct, "direct", false,
		"Bulk insert links instead of updating items one by one")
	attachCmd.Flags().StringVar(&attachFlags.jobID, "job-id", "",
		"Identifier of the run, used in logs and by 'dynis stop' (default: random uuid)")
	attachCmd.Flags().DurationVar(&attachFlags.timeout, "timeout", 0,
		"Abort the run after this duration (default: timeout from dynis.yaml, or none)\n"+
			"Examples: 30m, 2h")
	attachCmd.MarkFlagsMutuallyExclusive("item-set-id", "none")
}

// buildRunConfig merges the attach flags into the configured chunk sizing.
func buildRunConfig(cfg *config.ProjectConfig) dynis.RunConfig {
	run := cfg.RunConfig()
	run.JobID = attachFlags.jobID
	if run.JobID == "" {
		run.JobID = uuid.NewString()
	}
	run.Direct = attachFlags.direct

	switch {
	case attachFlags.none:
		run.ItemSetIDs = []int64{}
	case len(attachFlags.itemSetIDs) > 0:
		run.ItemSetIDs = append([]int64(nil), attachFlags.itemSetIDs...)
	}
	return run
}

func runAttach(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	timeout := attachFlags.timeout
	if timeout == 0 {
		timeout, _ = sess.cfg.TimeoutDuration()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	report, err := runJob(ctx, cmd, sess, buildRunConfig(sess.cfg))
	if err != nil {
		return err
	}

	renderReport(cmd.OutOrStdout(), report)
	if report.Stopped {
		return fmt.Errorf("job %s: %w", report.JobID, dynis.ErrStopped)
	}
	return nil
}

// runJob runs one job. Interrupt signals and, with Redis, the stop key
// stop it cooperatively; ctx cancellation aborts it.
func runJob(ctx context.Context, cmd *cobra.Command, sess *session, run dynis.RunConfig) (job.Report, error) {
	sigCtx, stopNotify := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopNotify()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCtx.Done():
			select {
			case <-done:
			default:
				fmt.Fprintln(cmd.ErrOrStderr(), "\n[INTERRUPT] Received interrupt signal, stopping after the current chunk...")
			}
		case <-done:
		}
	}()

	signals := []dynis.StopSignal{stopsignal.Context(sigCtx)}
	opts := []job.Option{}

	client, err := openRedis(ctx, sess.cfg, sess.logger)
	if err != nil {
		return job.Report{JobID: run.JobID}, err
	}
	if client != nil {
		defer client.Close()

		stopKey := stopsignal.NewRedis(client, stopsignal.Key(sess.cfg.Redis.StopKeyPrefix, run.JobID))
		defer func() {
			if err := stopKey.Clear(context.Background()); err != nil {
				sess.logger.Notice("Could not clear stop key: {error}", dynis.Fields{"error": err.Error()})
			}
		}()
		signals = append(signals, stopKey)

		ttl, err := sess.cfg.LockTTL()
		if err != nil {
			return job.Report{JobID: run.JobID}, err
		}
		opts = append(opts, job.WithLocker(lock.NewRedis(client, ttl), lock.DefaultKey))

		fmt.Fprintf(cmd.ErrOrStderr(), "Job %s started. Stop it with: dynis stop --job-id %s\n", run.JobID, run.JobID)
	}
	opts = append(opts, job.WithStopSignal(stopsignal.Any(signals...)))

	return job.NewAttachItemsToItemSets(sess.store, sess.logger, opts...).Run(ctx, run)
}
