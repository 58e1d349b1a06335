package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*FingerprintCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFingerprintCache(client), s
}

func TestFingerprintCacheMissThenHit(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	entryID, err := cache.Get(ctx, "a1b2c3d4e5f60718")
	require.NoError(t, err)
	require.Empty(t, entryID)

	require.NoError(t, cache.Set(ctx, "a1b2c3d4e5f60718", "entry-1", 30*time.Second))

	entryID, err = cache.Get(ctx, "a1b2c3d4e5f60718")
	require.NoError(t, err)
	require.Equal(t, "entry-1", entryID)
}

func TestFingerprintCacheKeepsFirstEntry(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "hash", "entry-1", 30*time.Second))
	require.NoError(t, cache.Set(ctx, "hash", "entry-2", 30*time.Second))

	entryID, err := cache.Get(ctx, "hash")
	require.NoError(t, err)
	require.Equal(t, "entry-1", entryID)
}

func TestFingerprintCacheExpires(t *testing.T) {
	cache, s := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "hash", "entry-1", 30*time.Second))
	require.True(t, s.Exists(fingerprintKeyPrefix+"hash"))

	s.FastForward(31 * time.Second)

	entryID, err := cache.Get(ctx, "hash")
	require.NoError(t, err)
	require.Empty(t, entryID)
}

func TestFingerprintCacheServerDown(t *testing.T) {
	cache, s := newTestCache(t)
	s.Close()

	_, err := cache.Get(context.Background(), "hash")
	require.Error(t, err)
}
