package stopsignal

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// DefaultStopKeyTTL bounds how long an unconsumed stop request lives.
const DefaultStopKeyTTL = 24 * time.Hour

// Key returns the stop key of a job.
func Key(prefix, jobID string) string {
	if prefix == "" {
		prefix = dynis.DefaultStopKeyPrefix
	}
	return prefix + jobID
}

// Redis reports stop while a key exists. Another process requests the stop
// by setting the key.
type Redis struct {
	client redis.Cmdable
	key    string
}

// NewRedis watches key. Panics if client is nil.
func NewRedis(client redis.Cmdable, key string) *Redis {
	if client == nil {
		panic("client cannot be nil")
	}
	return &Redis{client: client, key: key}
}

// Key returns the watched key.
func (r *Redis) Key() string {
	return r.key
}

func (r *Redis) ShouldStop(ctx context.Context) (bool, error) {
	n, err := r.client.Exists(ctx, r.key).Result()
	if err != nil {
		return false, fmt.Errorf("poll stop key %s: %w", r.key, err)
	}
	return n > 0, nil
}

// Request sets the stop key.
func (r *Redis) Request(ctx context.Context) error {
	if err := r.client.Set(ctx, r.key, time.Now().UTC().Format(time.RFC3339), DefaultStopKeyTTL).Err(); err != nil {
		return fmt.Errorf("set stop key %s: %w", r.key, err)
	}
	return nil
}

// Clear removes the stop key, typically once the stopped run has ended.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("clear stop key %s: %w", r.key, err)
	}
	return nil
}
