package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockValue    = "LOCK"
	resultPrefix = "RES:"
)

// releaseLock deletes the slot only while it still holds the lock, so a
// late Release never discards a stored response.
var releaseLock = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// IdempotencyStore keeps one slot per key: either an in-flight lock or the
// stored response of the request that held it.
type IdempotencyStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewIdempotencyStore(rdb redis.UniversalClient, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// AcquireLock claims key for lockTTL. False means another request holds it
// or already stored a response.
func (s *IdempotencyStore) AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, lockValue, lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis.IdempotencyStore.AcquireLock:%w", err)
	}
	return ok, nil
}

// SaveResult replaces the lock with the response, kept for the store's TTL.
func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, jsonPayload string) error {
	return s.rdb.Set(ctx, key, resultPrefix+jsonPayload, s.ttl).Err()
}

func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (string, bool, error) {
	v, found, err := s.slot(ctx, key)
	if err != nil || !found {
		return "", false, err
	}

	payload, ok := strings.CutPrefix(v, resultPrefix)
	return payload, ok, nil
}

func (s *IdempotencyStore) IsLocked(ctx context.Context, key string) (bool, error) {
	v, _, err := s.slot(ctx, key)
	return v == lockValue, err
}

// Release frees a lock whose request failed so the client may retry.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return releaseLock.Run(ctx, s.rdb, []string{key}, lockValue).Err()
}

func (s *IdempotencyStore) slot(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis.IdempotencyStore:%w", err)
	}
	return v, true, nil
}
