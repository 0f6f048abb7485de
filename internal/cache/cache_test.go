package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storesync-api/internal/logging"
)

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, "test", logging.Discard()), mr
}

func TestCaches(t *testing.T) {
	mem := NewMemoryCache()
	t.Cleanup(func() { mem.Close() })
	rc, _ := newRedisCache(t)

	for name, c := range map[string]Cache{"memory": mem, "redis": rc} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := c.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrCacheMiss)

			require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
			got, err := c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), got)

			require.NoError(t, c.Delete(ctx, "k"))
			_, err = c.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrCacheMiss)
		})
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "gone", []byte("x"), -time.Second))
	require.NoError(t, c.Set(ctx, "live", []byte("y"), time.Minute))

	_, err := c.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 1, c.Len())

	c.sweep()
	c.mu.RLock()
	assert.Len(t, c.entries, 1)
	c.mu.RUnlock()
}

func TestRedisCachePrefixAndTTL(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "item:1", []byte("x"), time.Minute))
	assert.True(t, mr.Exists("test:cache:item:1"))

	mr.FastForward(2 * time.Minute)
	_, err := c.Get(ctx, "item:1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestFetch(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	type detail struct {
		Image string `json:"image"`
	}
	calls := 0
	fn := func() (detail, error) {
		calls++
		return detail{Image: "a.jpg"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Fetch(ctx, c, "item:9", time.Minute, fn)
		require.NoError(t, err)
		assert.Equal(t, "a.jpg", got.Image)
	}
	assert.Equal(t, 1, calls)

	_, err := Fetch(ctx, c, "item:10", time.Minute, func() (detail, error) {
		return detail{}, errors.New("boom")
	})
	assert.Error(t, err)
	_, err = c.Get(ctx, "item:10")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
