package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CompareCache memoizes assembled comparison views. Instead of scanning for
// keys to delete, every prompt carries a generation counter that is bumped
// whenever one of its evaluations changes; the counter is part of the cache
// key, so stale entries simply stop being addressed and expire by TTL.
type CompareCache struct {
	cache *Cache
	ttl   time.Duration
}

func NewCompareCache(client *redis.Client, ttl time.Duration) *CompareCache {
	return &CompareCache{cache: NewCache(client), ttl: ttl}
}

func (c *CompareCache) Get(ctx context.Context, promptID, baseID, compareID uuid.UUID, dest interface{}) error {
	key, err := c.key(ctx, promptID, baseID, compareID)
	if err != nil {
		return err
	}
	return c.cache.Get(ctx, key, dest)
}

func (c *CompareCache) Set(ctx context.Context, promptID, baseID, compareID uuid.UUID, value interface{}) error {
	key, err := c.key(ctx, promptID, baseID, compareID)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, key, value, c.ttl)
}

// Invalidate bumps the prompt's generation counter, orphaning every cached
// view for that prompt.
func (c *CompareCache) Invalidate(ctx context.Context, promptID uuid.UUID) error {
	_, err := c.cache.Increment(ctx, genKey(promptID))
	return err
}

func (c *CompareCache) key(ctx context.Context, promptID, baseID, compareID uuid.UUID) (string, error) {
	gen, err := c.cache.client.Get(ctx, genKey(promptID)).Int64()
	if err != nil && err != redis.Nil {
		return "", fmt.Errorf("compare cache generation: %w", err)
	}
	return fmt.Sprintf("compare:%d:%s:%s:%s", gen, promptID, baseID, compareID), nil
}

func genKey(promptID uuid.UUID) string {
	return "compare:gen:" + promptID.String()
}
