package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/vvka-141/dynis/internal/config"
	"github.com/vvka-141/dynis/internal/db"
	"github.com/vvka-141/dynis/internal/logging"
	"github.com/vvka-141/dynis/internal/store/mysql"
	"github.com/vvka-141/dynis/internal/store/postgres"
	"github.com/vvka-141/dynis/pkg/dynis"
)

// Store and Redis factories. Tests replace them.
var (
	openStore = defaultOpenStore
	openRedis = defaultOpenRedis
)

// loadSettings resolves the configuration of a command.
// Precedence: flag > environment > dynis.yaml > defaults.
func loadSettings(cmd *cobra.Command) (*config.ProjectConfig, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("config")
	explicit := path != ""
	if !explicit {
		path = "."
	}

	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, config.ErrConfigNotFound) && !explicit:
		cfg = &config.ProjectConfig{}
	case errors.Is(err, config.ErrConfigNotFound):
		return nil, fmt.Errorf("%s: %w: %w", path, err, dynis.ErrInvalidConfig)
	case err != nil:
		return nil, fmt.Errorf("failed to load %s: %w: %w", config.ConfigFileName, err, dynis.ErrInvalidConfig)
	}

	cfg.ApplyEnv(os.Getenv)

	if v, _ := cmd.Flags().GetString("database-url"); v != "" {
		cfg.Database.URL = v
	}
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.Database.Driver = v
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.ProjectConfig) dynis.Logger {
	return logging.New(logging.Options{
		Output:  cmd.ErrOrStderr(),
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Verbose: getVerboseFlag(cmd),
	})
}

func resolveDriver(cfg config.DatabaseConfig) (db.Driver, error) {
	driver, err := db.ParseDriver(cfg.Driver)
	if err != nil {
		return "", err
	}
	if driver != "" {
		return driver, nil
	}
	return db.DetectDriver(cfg.URL)
}

func defaultOpenStore(ctx context.Context, cfg *config.ProjectConfig, logger dynis.Logger) (dynis.Store, error) {
	driver, err := resolveDriver(cfg.Database)
	if err != nil {
		return nil, err
	}
	switch driver {
	case db.DriverMySQL:
		return mysql.Open(ctx, cfg.Database.URL, logger)
	default:
		return postgres.Open(ctx, cfg.Database.URL, logger)
	}
}

// defaultOpenRedis returns nil when no Redis address is configured.
func defaultOpenRedis(ctx context.Context, cfg *config.ProjectConfig, logger dynis.Logger) (*redis.Client, error) {
	if cfg.Redis.Address == "" {
		return nil, nil
	}
	return db.NewRedis(ctx, db.RedisOptions{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
}

// session is what the commands talking to the catalog share.
type session struct {
	cfg    *config.ProjectConfig
	logger dynis.Logger
	store  dynis.Store
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cmd, cfg)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, store: store}, nil
}

func (s *session) Close() {
	s.store.Close()
}
