package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
)

// releaseIfOwner deletes KEYS[1] only while it still holds ARGV[1], so an
// expired lock taken over by another request is left alone.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var errLockUnconfigured = errors.New("order lock has no redis client")

// OrderLock is a SET NX PX lock keyed by order. Each acquisition gets a fresh
// token and only that token can release it.
type OrderLock struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewOrderLock(client redis.Cmdable, ttl time.Duration) *OrderLock {
	return &OrderLock{client: client, ttl: ttl}
}

// Acquire reports acquired=false without error when someone else owns key.
func (l *OrderLock) Acquire(ctx context.Context, key string) (token string, acquired bool, err error) {
	if l == nil || l.client == nil {
		return "", false, errLockUnconfigured
	}
	if key == "" || l.ttl <= 0 {
		return "", false, errors.New("order lock needs a key and a positive ttl")
	}

	token = ulid.Make().String()
	acquired, err = l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, acquired, nil
}

func (l *OrderLock) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return releaseIfOwner.Run(ctx, l.client, []string{key}, token).Err()
}
