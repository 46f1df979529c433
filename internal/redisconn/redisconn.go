// Package redisconn opens the Redis client shared by the engine and
// waits for it to answer.
package redisconn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
)

// ErrUnreachable is returned when Redis never answered a ping.
var ErrUnreachable = errors.New("redis unreachable")

// Options configures [Connect].
type Options struct {
	Addr     string
	Password string
	DB       int

	// MaxTries bounds the ping attempts. Defaults to 5.
	MaxTries uint
	// InitialInterval is the first retry delay. Defaults to 200ms.
	InitialInterval time.Duration
	// MaxInterval caps the retry delay. Defaults to 5s.
	MaxInterval time.Duration
}

// Connect creates a client and pings it with exponential backoff. On
// failure the client is closed.
func Connect(ctx context.Context, opts Options, logger *slog.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxTries == 0 {
		opts.MaxTries = 5
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 200 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = opts.InitialInterval
	expBackoff.MaxInterval = opts.MaxInterval
	expBackoff.Reset()

	_, err := backoff.Retry(ctx, func() (string, error) {
		return client.Ping(ctx).Result()
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(opts.MaxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			logger.Warn("redis ping failed, retrying", "addr", opts.Addr, "in", d, "error", err)
		}),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, opts.Addr, err)
	}

	logger.Info("redis connected", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}
