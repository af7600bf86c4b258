package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Options configures the shared Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// New creates a Redis client and verifies the server answers. On failure the
// client is closed and the error returned.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("platform/cache: address required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// AsynqOpts returns the queue connection settings for the same server.
func AsynqOpts(opts Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
}
