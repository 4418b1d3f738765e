package unread

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterCache holds unread counters. A missing key means the count is
// unknown and must be recomputed from the store.
type CounterCache interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, value int64) error
	// IncrIfPresent increments an existing counter and leaves missing keys missing.
	IncrIfPresent(ctx context.Context, key string) error
	Delete(ctx context.Context, key string) error
}

// Stats tracks cache statistics.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

func (s *Stats) snapshot() Stats {
	return Stats{
		Hits:   atomic.LoadUint64(&s.Hits),
		Misses: atomic.LoadUint64(&s.Misses),
		Errors: atomic.LoadUint64(&s.Errors),
	}
}

func counterKey(roomID, userID int64) string {
	return strconv.FormatInt(roomID, 10) + ":" + strconv.FormatInt(userID, 10)
}

// MemoryCache is a process-local CounterCache.
type MemoryCache struct {
	mu     sync.Mutex
	values map[string]int64
	stats  Stats
}

// NewMemoryCache creates an empty in-memory counter cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[string]int64)}
}

// Get returns the counter stored under key.
func (c *MemoryCache) Get(_ context.Context, key string) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if ok {
		atomic.AddUint64(&c.stats.Hits, 1)
	} else {
		atomic.AddUint64(&c.stats.Misses, 1)
	}
	return v, ok, nil
}

// Set stores a counter.
func (c *MemoryCache) Set(_ context.Context, key string, value int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

// IncrIfPresent increments key if it exists.
func (c *MemoryCache) IncrIfPresent(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.values[key]; ok {
		c.values[key] = v + 1
	}
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

// GetStats returns the current cache statistics.
func (c *MemoryCache) GetStats() Stats {
	return c.stats.snapshot()
}

// incrIfExists increments KEYS[1] only when it already exists, keeping its TTL.
var incrIfExists = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("INCR", KEYS[1])
end
return false
`)

// RedisCache is a CounterCache backed by Redis, so counters survive restarts.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	stats  Stats
}

// NewRedisCache creates a Redis counter cache. Keys expire after ttl.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Get returns the counter stored under key.
func (c *RedisCache) Get(ctx context.Context, key string) (int64, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddUint64(&c.stats.Misses, 1)
			return 0, false, nil
		}
		atomic.AddUint64(&c.stats.Errors, 1)
		return 0, false, fmt.Errorf("cache get error: %w", err)
	}
	atomic.AddUint64(&c.stats.Hits, 1)
	return v, true, nil
}

// Set stores a counter with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value int64) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// IncrIfPresent increments key if it exists.
func (c *RedisCache) IncrIfPresent(ctx context.Context, key string) error {
	err := incrIfExists.Run(ctx, c.client, []string{c.prefix + key}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache incr error: %w", err)
	}
	return nil
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// GetStats returns the current cache statistics.
func (c *RedisCache) GetStats() Stats {
	return c.stats.snapshot()
}

// Ping checks if the Redis connection is healthy.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
