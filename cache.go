package chaingate

import (
	"context"
	"encoding/json"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Cache is a generic, namespaced, TTL'd cache over the shared Store with
// stampede prevention: under concurrent misses for one key, GetOrSet runs
// the compute function at most once while the other callers wait for its
// result.
//
// Store errors never fail a caller. Get treats them as misses, and
// GetOrSet degrades to computing directly, uncached — possible duplicate
// work, never incorrect results.
type Cache[T any] struct {
	store Store
	cfg   CacheConfig

	hits   atomic.Uint64
	misses atomic.Uint64
	sets   atomic.Uint64
}

// CacheStats reports hit/miss/set counters for one Cache instance.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Sets    uint64
	HitRate float64
}

// NewCache creates a cache using the given store and configuration.
func NewCache[T any](store Store, cfg CacheConfig) *Cache[T] {
	return &Cache[T]{store: store, cfg: cfg.withDefaults()}
}

func (c *Cache[T]) fullKey(key string) string {
	return c.cfg.Prefix + ":" + key
}

func (c *Cache[T]) lockKey(key string) string {
	return c.cfg.Prefix + ":lock:" + key
}

// Get returns the cached value for key. A store error or an entry that
// fails to decode counts as a miss.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := c.store.Get(ctx, c.fullKey(key))
	if err != nil || raw == nil {
		c.misses.Add(1)
		return zero, false
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return value, true
}

// Set caches value under key. A ttl <= 0 uses the configured default.
func (c *Cache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	if err := c.store.Set(ctx, c.fullKey(key), raw, ttl); err != nil {
		return err
	}
	c.sets.Add(1)
	return nil
}

// Delete removes the cached value for key.
func (c *Cache[T]) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.fullKey(key))
}

// Has reports whether key is cached.
func (c *Cache[T]) Has(ctx context.Context, key string) bool {
	raw, err := c.store.Get(ctx, c.fullKey(key))
	return err == nil && raw != nil
}

// GetOrSet returns the cached value for key, computing and caching it on
// a miss. Concurrent misses for the same key elect one computer through
// an atomic short-TTL lock in the store; the rest poll for the computed
// value and only compute themselves if the wait times out.
//
// If compute fails, nothing is cached, the lock is released, and the
// error is returned; the next caller will compute again.
func (c *Cache[T]) GetOrSet(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}

	token := []byte(uuid.NewString())
	acquired, err := c.store.SetIfNotExists(ctx, c.lockKey(key), token, c.cfg.LockTTL)
	if err != nil {
		// Store trouble: compute directly, uncached.
		return compute(ctx)
	}

	if !acquired {
		if value, ok := c.waitForValue(ctx, key); ok {
			return value, nil
		}
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		// Lock holder never delivered; compute independently.
		return compute(ctx)
	}

	// Release only if the lock is still ours. After a TTL expiry the lock
	// may belong to a new owner; an unconditional delete would free it
	// from under them.
	defer c.store.CompareAndDelete(ctx, c.lockKey(key), token)

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	// A failed cache write still returns the computed value.
	c.Set(ctx, key, value, ttl)
	return value, nil
}

// waitForValue polls for the value while a peer computes it.
func (c *Cache[T]) waitForValue(ctx context.Context, key string) (T, bool) {
	var zero T
	deadline := time.Now().Add(c.cfg.WaitTimeout)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return zero, false
		case <-ticker.C:
		}
		if value, ok := c.Get(ctx, key); ok {
			return value, true
		}
	}
	return zero, false
}

// Stats returns the cache's hit/miss/set counters since construction.
func (c *Cache[T]) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	sets := c.sets.Load()
	stats := CacheStats{Hits: hits, Misses: misses, Sets: sets}
	if total := hits + misses; total > 0 {
		stats.HitRate = math.Round(float64(hits)/float64(total)*100) / 100
	}
	return stats
}
