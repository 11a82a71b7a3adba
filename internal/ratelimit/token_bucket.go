package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// KEYS[1] bucket hash. ARGV: refill per second, capacity, idle ttl ms, now ms.
// Replies {allowed, whole tokens left, ms until the next token}.
var takeToken = redis.NewScript(`
local refill = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[4])

local level = capacity
local state = redis.call("HMGET", KEYS[1], "level", "at")
if state[1] then
  local idle = math.max(0, now - tonumber(state[2]))
  level = math.min(capacity, tonumber(state[1]) + idle * refill / 1000)
end

local allowed = 0
local wait = 0
if level >= 1 then
  allowed = 1
  level = level - 1
else
  wait = math.ceil((1 - level) * 1000 / refill)
end

redis.call("HSET", KEYS[1], "level", tostring(level), "at", tostring(now))
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return {allowed, math.floor(level), wait}
`)

// TokenBucket is a Redis-backed bucket shared by every process pointing at
// the same server.
type TokenBucket struct {
	client redis.Scripter
	now    func() time.Time
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client redis.Scripter, now func() time.Time) *TokenBucket {
	if client == nil {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &TokenBucket{client: client, now: now}
}

var errBucketUnset = errors.New("rate limiter not configured")

// Allow takes one token from the bucket at key, refilling at rate tokens per second up to burst.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	switch {
	case t == nil || t.client == nil:
		return nil, errBucketUnset
	case key == "":
		return nil, errors.New("rate limiter key is empty")
	case rate <= 0 || burst <= 0:
		return nil, fmt.Errorf("rate limiter needs positive rate and burst, got %v/%d", rate, burst)
	}

	reply, err := takeToken.Run(ctx, t.client, []string{key},
		rate, burst, idleTTL(rate, burst).Milliseconds(), t.now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("token bucket %s: %w", key, err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("token bucket %s: unexpected reply %v", key, reply)
	}

	return &Result{
		Allowed:    reply[0] == 1,
		Limit:      burst,
		Remaining:  int(reply[1]),
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

// idleTTL keeps an untouched bucket for twice its full refill time.
func idleTTL(rate float64, burst int) time.Duration {
	return time.Duration(math.Max(1, math.Ceil(2*float64(burst)/rate))) * time.Second
}
