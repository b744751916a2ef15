// Package mysql implements dynis.Store on MySQL or MariaDB through gorm.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/vvka-141/dynis/internal/db"
	"github.com/vvka-141/dynis/pkg/dynis"
)

var _ dynis.Store = (*Store)(nil)

type identityKey struct {
	kind dynis.ResourceKind
	id   int64
}

// Store mirrors the PostgreSQL store: a transaction begun on first write,
// committed by Flush, and an identity map cleared at the same time.
type Store struct {
	db       *gorm.DB
	ownsDB   bool
	mu       sync.Mutex
	tx       *gorm.DB
	loaded   map[identityKey]*dynis.Resource
	spSerial int
}

// New wraps an open gorm handle. The caller keeps ownership of it.
func New(gdb *gorm.DB) *Store {
	if gdb == nil {
		panic("db cannot be nil")
	}
	return &Store{db: gdb, loaded: make(map[identityKey]*dynis.Resource)}
}

// Open connects with retry and returns a store owning its handle.
func Open(ctx context.Context, databaseURL string, logger dynis.Logger) (*Store, error) {
	gdb, err := db.NewMySQLConnector(databaseURL, logger).Connect(ctx)
	if err != nil {
		return nil, err
	}
	s := New(gdb)
	s.ownsDB = true
	return s, nil
}

// Migrate creates the tables used by the store.
func Migrate(ctx context.Context, gdb *gorm.DB) error {
	err := gdb.WithContext(ctx).AutoMigrate(
		&resourceClass{},
		&resourceRow{},
		&itemItemSet{},
		&valueRow{},
		&dynamicItemSetQuery{},
	)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// DB exposes the underlying handle, for migrations.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) reader(ctx context.Context) *gorm.DB {
	if s.tx != nil {
		return s.tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

func (s *Store) writer(ctx context.Context) (*gorm.DB, error) {
	if s.tx == nil {
		tx := s.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return nil, storeError("begin transaction", tx.Error)
		}
		s.tx = tx
	}
	return s.tx.WithContext(ctx), nil
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
	if err := tx.WithContext(ctx).Commit().Error; err != nil {
		return storeError("commit", err)
	}
	return nil
}

// Close rolls back pending writes and closes an owned handle.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
	clear(s.loaded)
	if s.ownsDB {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// inSavepoint runs fn so that its failure only undoes its own writes.
func (s *Store) inSavepoint(tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	s.spSerial++
	name := fmt.Sprintf("dynis_sp_%d", s.spSerial)
	if err := tx.SavePoint(name).Error; err != nil {
		return storeError("savepoint", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.RollbackTo(name).Error; rbErr != nil {
			return storeError("rollback savepoint", rbErr)
		}
		return err
	}
	return nil
}

func storeError(op string, err error) error {
	if errors.Is(err, dynis.ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, dynis.ErrStoreUnavailable, err)
}

// itemError keeps statement errors reported by the server (constraint
// violations and the like) per item. Anything else is a store failure.
func itemError(op string, err error) error {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return storeError(op, err)
}
