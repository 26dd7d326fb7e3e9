package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKey(t *testing.T) {
	a := Key([]byte(`{"model":"m","input":"hi"}`))
	b := Key([]byte(`{"model":"m","input":"hi"}`))
	c := Key([]byte(`{"model":"m","input":"ho"}`))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, len("v1:embed:")+64)
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCache(time.Hour)
	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)

	m.Set(ctx, "k", []byte("v"))
	v, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCache(time.Nanosecond)
	m.Set(ctx, "k", []byte("v"))
	time.Sleep(time.Millisecond)
	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCacheUnreachableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewRedisCache(client, time.Minute, zap.NewNop().Sugar())
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	c := NewRedisCache(client, time.Minute, zap.NewNop().Sugar())
	key := Key([]byte(t.Name()))
	c.Set(context.Background(), key, []byte(`{"embeddings":[[1,2]]}`))
	assert.Eventually(t, func() bool {
		v, ok := c.Get(context.Background(), key)
		return ok && string(v) == `{"embeddings":[[1,2]]}`
	}, 2*time.Second, 20*time.Millisecond)
	client.Del(context.Background(), key)
}
