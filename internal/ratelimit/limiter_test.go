package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestTokenBucketDrainsAndRefills(t *testing.T) {
	_, client := newClient(t)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	bucket := NewTokenBucket(client, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "k", 1, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d", i)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := bucket.Allow(ctx, "k", 1, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	now = now.Add(1500 * time.Millisecond)
	res, err = bucket.Allow(ctx, "k", 1, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	_, client := newClient(t)
	bucket := NewTokenBucket(client, nil)
	ctx := context.Background()

	_, err := bucket.Allow(ctx, "", 1, 1)
	assert.Error(t, err)
	_, err = bucket.Allow(ctx, "k", 0, 1)
	assert.Error(t, err)

	var nilBucket *TokenBucket
	_, err = nilBucket.Allow(ctx, "k", 1, 1)
	assert.Error(t, err)
}

func TestProvisionLimiterPerCaller(t *testing.T) {
	_, client := newClient(t)
	limiter := NewProvisionLimiter(client, 0.001, 1, time.Second)
	ctx := context.Background()

	res, err := limiter.AllowCaller(ctx, "mock-api-key")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.AllowCaller(ctx, "mock-api-key")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = limiter.AllowCaller(ctx, "mock-admin-key")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestProvisionLimiterOrderLock(t *testing.T) {
	srv, client := newClient(t)
	limiter := NewProvisionLimiter(client, 5, 20, 5*time.Second)
	ctx := context.Background()

	token, ok, err := limiter.TryLockOrder(ctx, "ord-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = limiter.TryLockOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, limiter.ReleaseOrder(ctx, "ord-1", "not-the-owner"))
	assert.True(t, srv.Exists("esimmock:provision:order:ord-1"))

	require.NoError(t, limiter.ReleaseOrder(ctx, "ord-1", token))
	_, ok, err = limiter.TryLockOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, ok)

	srv.FastForward(6 * time.Second)
	assert.False(t, srv.Exists("esimmock:provision:order:ord-1"))
}

func TestNilProvisionLimiterAllowsAll(t *testing.T) {
	var limiter *ProvisionLimiter
	ctx := context.Background()

	res, err := limiter.AllowCaller(ctx, "anyone")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, ok, err := limiter.TryLockOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, limiter.ReleaseOrder(ctx, "ord-1", ""))
}
