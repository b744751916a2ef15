package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvka-141/dynis/internal/db"
	"github.com/vvka-141/dynis/internal/store/mysql"
	"github.com/vvka-141/dynis/internal/store/postgres"
	"github.com/vvka-141/dynis/pkg/dynis"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the catalog schema",
	Long: `Migrate creates the tables dynis reads and writes when they do not exist:
resources, their values, item set memberships and the saved queries of
dynamic item sets. Running it again is a no-op.

Examples:
  dynis migrate --database-url postgres://omeka@localhost/omeka
  dynis migrate --database-url mysql://omeka@localhost/omeka`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	driver, err := resolveDriver(cfg.Database)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	switch driver {
	case db.DriverMySQL:
		gdb, err := db.NewMySQLConnector(cfg.Database.URL, logger).Connect(ctx)
		if err != nil {
			return err
		}
		if sqlDB, err := gdb.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := mysql.Migrate(ctx, gdb); err != nil {
			return err
		}
	default:
		pool, err := db.NewPostgresConnector(cfg.Database.URL, logger).Connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	logger.Info("Schema is up to date on {driver}.", dynis.Fields{"driver": string(driver)})
	fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
	return nil
}
