package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a read-through JSON cache. A nil *Cache is valid and caches
// nothing, so callers never branch on whether Redis is configured.
type Cache struct {
	rdb redis.UniversalClient
	sf  singleflight.Group
}

func New(client redis.UniversalClient) *Cache {
	return &Cache{rdb: client}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil
}

// lookup decodes the entry at key into dst. A miss, a Redis error and an
// undecodable entry all report false.
func (c *Cache) lookup(ctx context.Context, key string, dst any) bool {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), dst) == nil
}

func (c *Cache) store(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, string(b), ttl).Err()
}

// GetOrSetJSON returns the cached value for key or loads, stores and returns
// it. Concurrent misses for one key share a single loader call. Redis
// failures fall through to the loader; loader errors are never cached.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if !c.enabled() {
		return loader(ctx)
	}

	var hit T
	if c.lookup(ctx, key, &hit) {
		return hit, nil
	}

	shared, err, _ := c.sf.Do(key, func() (any, error) {
		var again T
		if c.lookup(ctx, key, &again) {
			return again, nil
		}

		fresh, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.store(ctx, key, fresh, ttl)
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := shared.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("redis.GetOrSetJSON: cached %T for %s", shared, key)
	}

	return v, nil
}

// InvalidateEvent drops the event entry and the approved listing it may
// appear in.
func (c *Cache) InvalidateEvent(ctx context.Context, eventID uuid.UUID) error {
	if !c.enabled() {
		return nil
	}

	err := c.rdb.Del(ctx, KeyEvent(eventID), KeyApprovedEvents()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis.Cache.InvalidateEvent:%w", err)
	}
	return nil
}
