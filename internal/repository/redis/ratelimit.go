package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Each hit is a sorted-set member scored by its timestamp. A rejected hit is
// removed again so that retrying while blocked does not extend the block.
// Returns {allowed, hits in window, retry after ms}.
const luaSlidingWindow = `
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)

local hits = redis.call('ZCARD', KEYS[1])
if hits <= limit then
  return {1, hits, 0}
end

redis.call('ZREM', KEYS[1], ARGV[4])
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local wait = window
if oldest[2] then
  wait = math.max(0, tonumber(oldest[2]) + window - now)
end
return {0, hits - 1, wait}
`

// Decision is the outcome of one rate-limited attempt.
type Decision struct {
	Allowed    bool
	Hits       int64
	RetryAfter time.Duration
}

type SlidingWindowLimiter struct {
	rdb    redis.UniversalClient
	scope  string
	limit  int
	window time.Duration
	script *redis.Script
	now    func() time.Time
}

// NewSlidingWindowLimiter allows limit hits per window for each id within
// scope.
func NewSlidingWindowLimiter(
	rdb redis.UniversalClient,
	scope string,
	limit int,
	window time.Duration,
) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		rdb:    rdb,
		scope:  scope,
		limit:  limit,
		window: window,
		script: redis.NewScript(luaSlidingWindow),
		now:    time.Now,
	}
}

func (l *SlidingWindowLimiter) Limit() int {
	if l == nil {
		return 0
	}
	return l.limit
}

// ScriptHash is the SHA1 the limiter script is invoked by.
func (l *SlidingWindowLimiter) ScriptHash() string {
	return l.script.Hash()
}

// Allow records one hit for id. A nil limiter allows everything.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, id string) (Decision, error) {
	const op = "redis.SlidingWindowLimiter.Allow"

	if l == nil || l.rdb == nil {
		return Decision{Allowed: true}, nil
	}

	nowMs := l.now().UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + ":" + uuid.NewString()

	vals, err := l.script.Run(ctx, l.rdb,
		[]string{KeyRateLimit(l.scope, id)},
		nowMs, l.window.Milliseconds(), l.limit, member,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%s:%w", op, err)
	}
	if len(vals) != 3 {
		return Decision{}, fmt.Errorf("%s: unexpected script reply %v", op, vals)
	}

	return Decision{
		Allowed:    vals[0] == 1,
		Hits:       vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}
