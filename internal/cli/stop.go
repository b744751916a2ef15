package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvka-141/dynis/internal/stopsignal"
	"github.com/vvka-141/dynis/pkg/dynis"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask a running job to stop",
	Long: `Stop sets the Redis stop key of a running job. The job notices it
before its next chunk, ends the current item set as stopped and exits.

Requires redis.address in dynis.yaml or $DYNIS_REDIS_ADDRESS.

Example:
  dynis stop --job-id 3f0c2a4e-9b1d-4c55-8f6e-0a7d2c9e1b44`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

var stopFlags struct {
	jobID string
}

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().StringVar(&stopFlags.jobID, "job-id", "", "Identifier of the run to stop (printed when it started)")
	_ = stopCmd.MarkFlagRequired("job-id")
}

func runStop(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if cfg.Redis.Address == "" {
		return fmt.Errorf("stopping a job requires redis.address or $DYNIS_REDIS_ADDRESS: %w", dynis.ErrInvalidConfig)
	}

	client, err := openRedis(ctx, cfg, newLogger(cmd, cfg))
	if err != nil {
		return err
	}
	defer client.Close()

	signal := stopsignal.NewRedis(client, stopsignal.Key(cfg.Redis.StopKeyPrefix, stopFlags.jobID))
	if err := signal.Request(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for job %s (key %s)\n", stopFlags.jobID, signal.Key())
	return nil
}
