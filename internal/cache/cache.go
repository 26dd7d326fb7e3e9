// Package cache memoizes embedding responses. Embeddings are deterministic
// for a given model and input, so a hit can be returned without touching the
// runtime.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sidecar-api/internal/metrics"
)

type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Key derives a cache key from the exact bytes sent to the runtime.
func Key(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "v1:embed:" + hex.EncodeToString(sum[:])
}

type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration, log *zap.SugaredLogger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		metrics.EmbeddingCache.WithLabelValues("hit").Inc()
		return val, true
	case errors.Is(err, redis.Nil):
		r.log.Debugw("Embedding cache miss", "key", key)
	default:
		r.log.Warnw("Embedding cache lookup failed", "key", key, "error", err)
	}
	metrics.EmbeddingCache.WithLabelValues("miss").Inc()
	return nil, false
}

// Set writes in the background; a failed write only costs a future miss.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
			r.log.Warnw("Failed to write embedding cache", "key", key, "error", err)
		}
	}()
}

// MemoryCache keeps entries in process, selected with --redis-addr=memory.
// Expired entries are dropped on lookup.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: map[string]memoryEntry{}}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || (m.ttl > 0 && time.Now().After(e.expires)) {
		delete(m.entries, key)
		metrics.EmbeddingCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.EmbeddingCache.WithLabelValues("hit").Inc()
	return e.value, true
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: append([]byte(nil), value...), expires: time.Now().Add(m.ttl)}
}
