// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := newRedisCache(client, "", zerolog.Nop())
	t.Cleanup(func() { _ = cache.Close() })

	return mr, cache
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	ctx := context.Background()

	cache.Set(ctx, "test-key", []byte("test-value"), 5*time.Minute)

	val, found := cache.Get(ctx, "test-key")
	require.True(t, found)
	assert.Equal(t, "test-value", string(val))

	assert.True(t, mr.Exists("vidgrab:test-key"), "key stored under prefix")

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestRedisCache_GetMissing(t *testing.T) {
	_, cache := setupMiniRedis(t)

	_, found := cache.Get(context.Background(), "missing")
	assert.False(t, found)
	assert.Equal(t, int64(1), cache.Stats().Misses)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	ctx := context.Background()

	cache.Set(ctx, "ttl-key", []byte("v"), time.Second)
	_, found := cache.Get(ctx, "ttl-key")
	require.True(t, found)

	mr.FastForward(2 * time.Second)

	_, found = cache.Get(ctx, "ttl-key")
	assert.False(t, found, "expected key to expire")
}

func TestRedisCache_Delete(t *testing.T) {
	_, cache := setupMiniRedis(t)
	ctx := context.Background()

	cache.Set(ctx, "k", []byte("v"), time.Minute)
	cache.Delete(ctx, "k")

	_, found := cache.Get(ctx, "k")
	assert.False(t, found)
}

func TestRedisCache_ClearOnlyOwnPrefix(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("foreign", "keep"))
	cache.Set(ctx, "a", []byte("1"), time.Minute)
	cache.Set(ctx, "b", []byte("2"), time.Minute)

	cache.Clear(ctx)

	assert.Equal(t, 0, cache.Stats().CurrentSize)
	assert.True(t, mr.Exists("foreign"), "foreign keys must survive Clear")
}

func TestRedisCache_JSONView(t *testing.T) {
	_, cache := setupMiniRedis(t)
	ctx := context.Background()

	j := NewJSON[sample](cache, "probe")
	require.NoError(t, j.Set(ctx, "u", sample{Name: "720p", Count: 3}, time.Minute))

	got, ok := j.Get(ctx, "u")
	require.True(t, ok)
	assert.Equal(t, sample{Name: "720p", Count: 3}, got)
}

func TestRedisCache_Ping(t *testing.T) {
	mr, cache := setupMiniRedis(t)

	require.NoError(t, cache.Ping(context.Background()))

	mr.Close()
	assert.Error(t, cache.Ping(context.Background()))
}

func TestRedisCache_ConcurrentAccess(t *testing.T) {
	_, cache := setupMiniRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := string(rune('a' + id))
			for j := 0; j < 20; j++ {
				cache.Set(ctx, key, []byte{byte(j)}, time.Minute)
				cache.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, cache.Stats().CurrentSize)
}

func TestNewRedisCache_ConnectFailure(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(context.Background(), RedisConfig{Addr: addr}, zerolog.Nop())
	require.Error(t, err)
}
