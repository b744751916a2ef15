package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/dynis/internal/retry"
	"github.com/vvka-141/dynis/pkg/dynis"
)

// Pool configuration. The job is sequential, so a small pool suffices.
const (
	DefaultMaxConns        = 4
	DefaultMinConns        = 1
	DefaultMaxConnIdleTime = 30 * time.Minute
)

// newRetryExecutor returns the executor shared by both connectors.
func newRetryExecutor(logger dynis.Logger) *retry.Executor {
	strategy := retry.NewExponentialBackoff(dynis.DefaultRetryMaxAttempts,
		retry.WithInitialDelay(dynis.DefaultRetryInitialDelay),
		retry.WithMaxDelay(dynis.DefaultRetryMaxDelay),
	)
	return retry.NewExecutor(retry.NewSQLErrorClassifier(), strategy).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Notice("Database connection failed, retry {attempt} in {delay}: {error}", dynis.Fields{
				"attempt": attempt + 1,
				"delay":   delay.String(),
				"error":   err.Error(),
			})
		})
}

// PostgresConnector opens pgx pools with retry on transient failures.
type PostgresConnector struct {
	databaseURL   string
	retryExecutor *retry.Executor
}

// NewPostgresConnector creates a connector for a postgres:// URL or keyword DSN.
func NewPostgresConnector(databaseURL string, logger dynis.Logger) *PostgresConnector {
	return &PostgresConnector{
		databaseURL:   databaseURL,
		retryExecutor: newRetryExecutor(logger),
	}
}

// Connect establishes and pings a pool. The caller closes it.
func (c *PostgresConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(c.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", dynis.ErrInvalidConfig)
	}
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	if poolConfig.ConnConfig.RuntimeParams["application_name"] == "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = "dynis"
	}

	var pool *pgxpool.Pool
	err = c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, wrapConnectionError(err, poolConfig.ConnConfig.Host, int(poolConfig.ConnConfig.Port), poolConfig.ConnConfig.Database)
	}
	return pool, nil
}
