package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const fingerprintKeyPrefix = "verifikat:fingerprint:"

// FingerprintCache implements usecase.FingerprintCache. It maps an entry
// fingerprint to the journal entry ID that first used it. Keys expire with
// the duplicate-detection window, so Postgres stays the source of truth.
type FingerprintCache struct {
	client redis.Cmdable
}

// NewFingerprintCache creates a new FingerprintCache.
func NewFingerprintCache(client redis.Cmdable) *FingerprintCache {
	return &FingerprintCache{client: client}
}

// Get returns the cached entry ID, or "" on a miss.
func (c *FingerprintCache) Get(ctx context.Context, hash string) (string, error) {
	entryID, err := c.client.Get(ctx, fingerprintKeyPrefix+hash).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}

	return entryID, err
}

// Set stores entryID under hash for ttl. An existing key is left alone.
func (c *FingerprintCache) Set(ctx context.Context, hash, entryID string, ttl time.Duration) error {
	return c.client.SetNX(ctx, fingerprintKeyPrefix+hash, entryID, ttl).Err()
}
