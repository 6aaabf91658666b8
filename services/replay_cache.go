// services/replay_cache.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayCache remembers signatures that already passed verification so a
// captured claim cannot be replayed inside the freshness window.
type ReplayCache interface {
	// SeenAndRemember reports whether sig was already recorded and, if not,
	// records it for ttl. The check-and-set must be atomic.
	SeenAndRemember(ctx context.Context, sig string, ttl time.Duration) (bool, error)
}

const replayKeyPrefix = "redemption:sig:"

// RedisReplayCache backs the cache with Redis SET NX so multiple instances
// share one replay horizon.
type RedisReplayCache struct {
	client *redis.Client
}

func NewRedisReplayCache(client *redis.Client) *RedisReplayCache {
	return &RedisReplayCache{client: client}
}

func (c *RedisReplayCache) SeenAndRemember(ctx context.Context, sig string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, replayKeyPrefix+sig, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	// SetNX returns false when the key already existed
	return !ok, nil
}

// MemoryReplayCache is the single-instance fallback used in tests and local
// runs without Redis.
type MemoryReplayCache struct {
	mu   sync.Mutex
	seen map[string]time.Time // signature -> expiry
}

func NewMemoryReplayCache() *MemoryReplayCache {
	return &MemoryReplayCache{seen: make(map[string]time.Time)}
}

func (c *MemoryReplayCache) SeenAndRemember(_ context.Context, sig string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, exp := range c.seen {
		if exp.Before(now) {
			delete(c.seen, k)
		}
	}
	if _, ok := c.seen[sig]; ok {
		return true, nil
	}
	c.seen[sig] = now.Add(ttl)
	return false, nil
}
