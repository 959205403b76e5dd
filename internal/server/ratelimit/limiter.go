// Package ratelimit throttles the signup and login endpoints per client IP
// with fixed-window counters in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("redis unavailable")

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// Count is the number of hits in the current window, this one included.
	Count int64
	// RetryAfter is set when the hit was refused.
	RetryAfter time.Duration
}

// Limiter allows up to limit hits per key per window.
type Limiter struct {
	redis  redis.UniversalClient
	limit  int64
	window time.Duration
	prefix string
}

func New(client redis.UniversalClient, limit int, window time.Duration) *Limiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{redis: client, limit: int64(limit), window: window, prefix: "dumpvault:rl"}
}

// hitScript increments the window counter and arms its TTL whenever the key
// has none, in one atomic step. It returns the count and the remaining TTL
// in milliseconds.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// Allow counts one hit for scope and ip. On Redis failure the error wraps
// ErrRedisUnavailable and the decision is left to the caller.
func (l *Limiter) Allow(ctx context.Context, scope, ip string) (Decision, error) {
	key := fmt.Sprintf("%s:%s:%s", l.prefix, scope, ip)

	res, err := hitScript.Run(ctx, l.redis, []string{key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("%w: unexpected script reply %v", ErrRedisUnavailable, res)
	}

	count := res[0]
	if count <= l.limit {
		return Decision{Allowed: true, Count: count}, nil
	}

	retry := time.Duration(res[1]) * time.Millisecond
	if retry <= 0 {
		retry = l.window
	}
	return Decision{Allowed: false, Count: count, RetryAfter: retry}, nil
}
