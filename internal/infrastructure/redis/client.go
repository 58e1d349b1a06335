package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout = 3 * time.Second

	// cacheTimeout bounds each fingerprint lookup. The guard falls back to
	// Postgres on any cache error, so a stalled Redis must fail fast instead
	// of holding up journal entries.
	cacheTimeout = 250 * time.Millisecond
)

// NewClient creates the fingerprint cache client from a redis:// URL and
// pings it. Read and write timeouts default to cacheTimeout unless the URL
// sets them.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cacheTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cacheTimeout
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}

	return client, nil
}
