package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "reporting:version"

// Cache wraps Redis based caching with versioning controls. A nil cache is
// valid and degrades to loading straight from the repository.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
// Redis trouble reads as version 0; the value only has to be consistent
// between a hit and the Bump that invalidates it.
func (c *Cache) Version(ctx context.Context) int64 {
	if c == nil || c.client == nil {
		return 0
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0
		}
		return 1
	}
	if err != nil {
		return 0
	}
	return ver
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) string {
	if c == nil || c.client == nil {
		return strings.Join(parts, ":")
	}
	return fmt.Sprintf("%s:%d", strings.Join(parts, ":"), c.Version(ctx))
}

// FetchJSON loads a cached value or populates it using the loader. The
// cache is advisory: any Redis failure falls through to the loader so a
// dead cache slows reports down instead of breaking them.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil {
		// best effort; a failed write just means a miss next time
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached report by incrementing the version. Ledger
// mutations call this instead of chasing individual keys.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func keyDashboard(period string) string {
	return strings.Join([]string{"reporting", "dashboard", period}, ":")
}
