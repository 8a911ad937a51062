package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"dinner-house/internal/logger"
)

// Cache keys.
const (
	keyMenuItems  = "catalog:items"
	keyDinners    = "catalog:dinners"
	keyDinnerPref = "catalog:dinner:"
	keyAddonsPref = "catalog:addons:"
)

const defaultTTL = 5 * time.Minute

// Cache is a read-through JSON cache over Redis. Every miss or Redis error
// degrades to the database read; cache problems are logged, never surfaced.
type Cache struct {
	rdb *goredis.Client
	ttl time.Duration
	log *logger.Logger
}

func NewCache(rdb *goredis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.Warn("cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, v any) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
}

// InvalidateMenu drops every catalog key. Called after any inventory or
// catalog mutation.
func (c *Cache) InvalidateMenu(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	keys := []string{keyMenuItems, keyDinners}
	for _, prefix := range []string{keyDinnerPref, keyAddonsPref} {
		iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			c.log.Warn("cache scan failed", "error", err)
		}
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("cache invalidation failed", "error", err)
	}
}
