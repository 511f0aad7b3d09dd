package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)

	cache.Set(ctx, 1, []string{"candidate.view"})
	perms, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, []string{"candidate.view"}, perms)
}

func TestCacheInvalidateUser(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 1, []string{"candidate.view"})
	cache.Set(ctx, 2, []string{"job.view"})

	require.NoError(t, cache.InvalidateUser(ctx, 1))

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, 2)
	assert.True(t, ok)
}

func TestCacheInvalidateAllOrphansEveryEntry(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 1, []string{"candidate.view"})
	cache.Set(ctx, 2, []string{"job.view"})

	require.NoError(t, cache.InvalidateAll(ctx))

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, 2)
	assert.False(t, ok)

	// New writes land under the new generation.
	cache.Set(ctx, 1, []string{"candidate.view"})
	_, ok = cache.Get(ctx, 1)
	assert.True(t, ok)
}

func TestCacheSurvivesRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, 1, []string{"candidate.view"})
	mr.Close()

	// Errors degrade to a miss; the caller falls back to the store.
	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
}

func TestNilCacheIsNoop(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
	cache.Set(ctx, 1, []string{"candidate.view"})
	assert.NoError(t, cache.InvalidateUser(ctx, 1))
	assert.NoError(t, cache.InvalidateAll(ctx))
}
