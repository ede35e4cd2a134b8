package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-core/internal/config"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	ok, err := cache.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, cache.Invalidate(ctx, "k"))

	ok, err = cache.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "marker released")
}

func TestAcquire(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	ok, err := cache.Acquire(ctx, "payment:p-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.Acquire(ctx, "payment:p-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "marker already held")

	mr.FastForward(2 * time.Minute)

	ok, err = cache.Acquire(ctx, "payment:p-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "marker expired")
}

func TestInitServer_Unreachable(t *testing.T) {
	_, err := InitServer(context.Background(), config.RedisConnection{
		AddressRedis: "127.0.0.1:1",
		DialTimeout:  100 * time.Millisecond,
	})
	assert.Error(t, err)
}
