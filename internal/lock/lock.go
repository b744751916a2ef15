// Package lock keeps two job runs from reconciling at the same time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// DefaultKey is the run lock of the attach job.
const DefaultKey = "dynis:lock:attach_to_itemset"

// Locker obtains exclusive run locks.
type Locker interface {
	// Obtain returns an error wrapping dynis.ErrLockNotObtained when another
	// holder owns the key.
	Obtain(ctx context.Context, key string) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	// Refresh extends the lock before its TTL expires.
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

// Redis implements Locker with bsm/redislock.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewRedis creates a Redis locker. A zero ttl uses dynis.DefaultLockTTL.
func NewRedis(client redislock.RedisClient, ttl time.Duration) *Redis {
	if client == nil {
		panic("client cannot be nil")
	}
	if ttl <= 0 {
		ttl = dynis.DefaultLockTTL
	}
	return &Redis{client: redislock.New(client), ttl: ttl}
}

func (r *Redis) Obtain(ctx context.Context, key string) (Lock, error) {
	l, err := r.client.Obtain(ctx, key, r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("lock %s is held by another run: %w", key, dynis.ErrLockNotObtained)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return &redisLock{lock: l, ttl: r.ttl}, nil
}

type redisLock struct {
	lock *redislock.Lock
	ttl  time.Duration
}

func (l *redisLock) Refresh(ctx context.Context) error {
	err := l.lock.Refresh(ctx, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("lock %s expired: %w", l.lock.Key(), dynis.ErrLockNotObtained)
	}
	return err
}

func (l *redisLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

// Noop grants every lock. It is used when Redis is not configured.
type Noop struct{}

func (Noop) Obtain(context.Context, string) (Lock, error) {
	return noopLock{}, nil
}

type noopLock struct{}

func (noopLock) Refresh(context.Context) error { return nil }
func (noopLock) Release(context.Context) error { return nil }
