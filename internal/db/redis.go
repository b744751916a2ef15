package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// RedisOptions selects the Redis server used for stop keys and run locks.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

// NewRedis connects and pings with retry. The caller closes the client.
func NewRedis(ctx context.Context, opts RedisOptions, logger dynis.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: DefaultMaxConns,
	})

	err := newRetryExecutor(logger).Execute(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w: %w", opts.Address, dynis.ErrConnectionFailed, err)
	}
	return client, nil
}
