package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairos100/swissluca-backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	for i := 1; i <= 2; i++ {
		allowed, count, err := c.FixedWindowAllow(ctx, "payments:user-1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.EqualValues(t, i, count)
	}
	assert.Equal(t, time.Minute, mr.TTL("sl:rate_limit:payments:user-1"))

	allowed, count, err := c.FixedWindowAllow(ctx, "payments:user-1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.EqualValues(t, 3, count)

	mr.FastForward(time.Minute + time.Second)
	allowed, count, err = c.FixedWindowAllow(ctx, "payments:user-1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.EqualValues(t, 1, count)
}

func TestSetNXAndDel(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	k := c.IdempotencyKey("stripe-webhook", "evt_1")

	set, err := c.SetNX(ctx, k, "1", time.Hour)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = c.SetNX(ctx, k, "1", time.Hour)
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, c.Del(ctx, k))
	_, err = c.Get(ctx, k)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestReleaseIfOwner(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	require.NoError(t, mr.Set("sl:lock:cron-worker", "owner-a"))

	released, err := c.ReleaseIfOwner(ctx, "sl:lock:cron-worker", "owner-b")
	require.NoError(t, err)
	assert.False(t, released)
	assert.True(t, mr.Exists("sl:lock:cron-worker"))

	released, err = c.ReleaseIfOwner(ctx, "sl:lock:cron-worker", "owner-a")
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, mr.Exists("sl:lock:cron-worker"))
}

func TestKeyBuilders(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "sl:idempotency:scope:id", c.IdempotencyKey("scope", "id"))
	assert.Equal(t, "sl:rate_limit:scope", c.RateLimitKey("scope"))
	assert.Equal(t, "sl:lock:subscription_expiry", c.LockKey("subscription_expiry"))
	assert.Equal(t, "sl:idempotency:scope", c.IdempotencyKey("scope", ""))
}

func TestUninitializedClientErrors(t *testing.T) {
	c := &Client{}
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	_, _, err := c.FixedWindowAllow(context.Background(), "x", 1, time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, c.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2, PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://:secret@cache:6380/3", DB: 9})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
}
