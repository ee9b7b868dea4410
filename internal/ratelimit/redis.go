package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkAndIncr atomically counts the request and stamps the window TTL on
// the first hit. Returns {count, remaining-ttl-ms}.
var checkAndIncrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// RedisLimiter is a fixed-window limiter sharing its counters across
// instances through Redis. Window expiry is handled by key TTL, so there is
// no pruning to do.
type RedisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: max, window: window}
}

// Allow checks and counts one request for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	res, err := checkAndIncrScript.Run(ctx, l.client,
		[]string{"ratelimit:" + key}, l.window.Milliseconds()).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit script: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return Result{}, fmt.Errorf("ratelimit script: unexpected reply %v", res)
	}
	count, _ := vals[0].(int64)
	ttlMs, _ := vals[1].(int64)

	if int(count) <= l.max {
		return Result{Allowed: true, Remaining: l.max - int(count)}, nil
	}

	retry := time.Duration(ttlMs) * time.Millisecond
	if retry < time.Second {
		retry = time.Second
	}
	return Result{Allowed: false, RetryAfter: retry}, nil
}
