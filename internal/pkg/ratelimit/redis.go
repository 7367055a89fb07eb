package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkScript increments the window counter, arms the expiry when the counter
// is fresh, and returns the count together with the remaining window in
// milliseconds. Running it as one script keeps the increment and the expiry
// atomic per key.
var checkScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// Redis is a fixed-window limiter backed by a shared redis instance.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a redis-backed limiter.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "ratelimit:"}
}

// Check records one event for key and evaluates it against limit per window.
func (r *Redis) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	vals, err := checkScript.Run(ctx, r.client, []string{r.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, err
	}

	count := int(vals[0])
	retryAfter := time.Duration(vals[1]) * time.Millisecond

	if count > limit {
		return Result{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
	}

	return Result{Allowed: true, Remaining: limit - count}, nil
}

// Reset discards the current window for key.
func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
