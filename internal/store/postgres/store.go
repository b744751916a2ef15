// Package postgres implements dynis.Store on PostgreSQL through pgx.
//
// Writes run in a transaction opened on first use; Flush commits it and
// clears the identity map of loaded resources, bounding both lock scope and
// memory to one chunk.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/dynis/internal/db"
	"github.com/vvka-141/dynis/pkg/dynis"
)

var _ dynis.Store = (*Store)(nil)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type identityKey struct {
	kind dynis.ResourceKind
	id   int64
}

// Store is not safe for concurrent use by several jobs; the mutex only
// guards the transaction and identity map against misuse.
type Store struct {
	pool     *pgxpool.Pool
	ownsPool bool
	mu       sync.Mutex
	tx       pgx.Tx
	loaded   map[identityKey]*dynis.Resource
}

// New wraps an existing pool. The caller keeps ownership of the pool.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pool cannot be nil")
	}
	return &Store{pool: pool, loaded: make(map[identityKey]*dynis.Resource)}
}

// Open connects with retry and returns a store owning its pool.
func Open(ctx context.Context, databaseURL string, logger dynis.Logger) (*Store, error) {
	pool, err := db.NewPostgresConnector(databaseURL, logger).Connect(ctx)
	if err != nil {
		return nil, err
	}
	s := New(pool)
	s.ownsPool = true
	return s, nil
}

// Pool exposes the underlying pool, for migrations.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// reader returns the open transaction or the pool.
func (s *Store) reader() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.pool
}

// writer returns the transaction, opening it on first use.
func (s *Store) writer(ctx context.Context) (pgx.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin transaction", err)
	}
	s.tx = tx
	return tx, nil
}

// Flush implements dynis.UnitOfWork.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.loaded)
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return storeError("commit", err)
	}
	return nil
}

// Close rolls back pending writes and closes an owned pool.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		_ = s.tx.Rollback(context.Background())
		s.tx = nil
	}
	clear(s.loaded)
	if s.ownsPool {
		s.pool.Close()
	}
}

// storeError marks infrastructure failures as ErrStoreUnavailable so the job
// treats them as fatal.
func storeError(op string, err error) error {
	if errors.Is(err, dynis.ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, dynis.ErrStoreUnavailable, err)
}

// itemError keeps statement errors reported by the server (constraint
// violations and the like) per item. Anything else is a store failure.
func itemError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return storeError(op, err)
}
