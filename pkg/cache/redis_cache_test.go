package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(client, "test")
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestRedisCacheSetGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	value := map[string]interface{}{"type": "FeatureCollection", "features": []interface{}{}}
	require.NoError(t, cache.Set(ctx, "content", value, time.Minute))

	var got map[string]interface{}
	require.NoError(t, cache.Get(ctx, "content", &got))
	assert.Equal(t, value, got)
}

func TestRedisCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	var got map[string]interface{}
	err := cache.Get(context.Background(), "absent", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheDelete(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "content", "value", time.Minute))
	require.NoError(t, cache.Delete(ctx, "content"))

	var got string
	assert.ErrorIs(t, cache.Get(ctx, "content", &got), ErrCacheMiss)
}

func TestRedisCacheTTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "content", "value", time.Minute))
	mr.FastForward(2 * time.Minute)

	var got string
	assert.ErrorIs(t, cache.Get(ctx, "content", &got), ErrCacheMiss)
}

func TestRedisCacheNamespacing(t *testing.T) {
	cache, mr := newTestCache(t)

	require.NoError(t, cache.Set(context.Background(), "key", "value", 0))
	assert.True(t, mr.Exists("test:key"))
}

func TestNopCache(t *testing.T) {
	nop := NewNop()
	ctx := context.Background()

	require.NoError(t, nop.Set(ctx, "key", "value", time.Minute))

	var got string
	assert.ErrorIs(t, nop.Get(ctx, "key", &got), ErrCacheMiss)
	require.NoError(t, nop.Delete(ctx, "key"))
	require.NoError(t, nop.Ping(ctx))
	require.NoError(t, nop.Close())
}
