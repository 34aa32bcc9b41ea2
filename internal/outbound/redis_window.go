package outbound

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// reserveScript prunes, counts, and appends in one atomic step.
// KEYS[1] window key; ARGV: now_ms, window_ms, limit, member.
// Returns {1, 0} when admitted, {0, retry_after_ms} when full.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  local retry = tonumber(oldest[2]) + window - now
  if retry < 0 then retry = 0 end
  return {0, retry}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, 0}
`)

// RedisWindow shares a sliding window between processes through a Redis
// sorted set per target.
type RedisWindow struct {
	client    *redis.Client
	keyPrefix string
	limits    map[string]Limit
	fallback  Limit
	now       func() time.Time
}

func NewRedisWindow(client *redis.Client, keyPrefix string, fallback Limit, limits map[string]Limit) *RedisWindow {
	if keyPrefix == "" {
		keyPrefix = "outbound:window"
	}

	copied := make(map[string]Limit, len(limits))
	for target, limit := range limits {
		copied[target] = limit
	}

	return &RedisWindow{
		client:    client,
		keyPrefix: keyPrefix,
		limits:    copied,
		fallback:  fallback,
		now:       time.Now,
	}
}

func (w *RedisWindow) SetClock(now func() time.Time) {
	w.now = now
}

func (w *RedisWindow) Reserve(ctx context.Context, target string) error {
	limit := w.fallback
	if l, ok := w.limits[target]; ok {
		limit = l
	}
	if limit.Calls <= 0 || limit.Window <= 0 {
		return nil
	}

	key := fmt.Sprintf("%s:%s", w.keyPrefix, target)
	result, err := reserveScript.Run(ctx, w.client, []string{key},
		w.now().UnixMilli(), limit.Window.Milliseconds(), limit.Calls, uuid.NewString()).Int64Slice()
	if err != nil {
		return fmt.Errorf("reserve rate window slot: %w", err)
	}
	if len(result) != 2 {
		return fmt.Errorf("reserve rate window slot: unexpected script reply %v", result)
	}

	if result[0] == 0 {
		return &RateLimitError{Target: target, RetryAfter: time.Duration(result[1]) * time.Millisecond}
	}
	return nil
}
