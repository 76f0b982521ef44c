package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"postapp/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Cache is a JSON cache over Redis. A Cache with a nil client is valid and
// always misses.
type Cache struct {
	rdb  *redis.Client
	name string
}

// New returns a Cache labelled name in metrics.
func New(rdb *redis.Client, name string) *Cache {
	return &Cache{rdb: rdb, name: name}
}

// Enabled reports whether a Redis client is attached.
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// GetJSON loads key into dest. It returns (false, nil) on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key for ttl.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// Aside serves dest from the cache, or calls fetch to fill it and stores the
// result. Cache failures never fail the call; fetch errors are returned as is.
func (c *Cache) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := c.GetJSON(ctx, key, dest)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues(c.name, "error").Inc()
		slog.WarnContext(ctx, "cache read failed", "cache", c.name, "key", key, "error", err)
	case found:
		observability.CacheLookups.WithLabelValues(c.name, "hit").Inc()
		return nil
	case c.Enabled():
		observability.CacheLookups.WithLabelValues(c.name, "miss").Inc()
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := c.SetJSON(ctx, key, dest, ttl); err != nil {
		slog.WarnContext(ctx, "cache write failed", "cache", c.name, "key", key, "error", err)
	}
	return nil
}

// Invalidate removes keys, logging rather than returning failures.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		slog.WarnContext(ctx, "cache invalidation failed", "cache", c.name, "keys", keys, "error", err)
	}
}
