// Package retry retries store connection attempts with exponential backoff.
//
// The classifier recognizes transient PostgreSQL (pgconn) and MySQL
// (go-sql-driver) failures plus network errors. The reconciliation job
// itself never retries: a re-run from scratch is the recovery path.
//
//	executor := retry.NewExecutor(retry.NewSQLErrorClassifier(), retry.NewExponentialBackoff(3))
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
package retry
