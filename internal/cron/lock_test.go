package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/kairos100/swissluca-backend/pkg/redis"
)

func newRedis(t *testing.T) (*pkgredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisLockExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedis(t)
	key := store.LockKey("cron-worker")

	first, err := NewRedisLock(store, key, time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, key, time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(key))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists(key), "a loser must not release the holder's lease")

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpiredLeaseIsNotStolenBack(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedis(t)
	key := store.LockKey("cron-worker")

	stale, err := NewRedisLock(store, key, time.Minute)
	require.NoError(t, err)
	fresh, err := NewRedisLock(store, key, time.Minute)
	require.NoError(t, err)

	ok, err := stale.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(2 * time.Minute)

	ok, err = fresh.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists(key))
}

func TestNewRedisLockValidates(t *testing.T) {
	store, _ := newRedis(t)
	_, err := NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(store, "", time.Minute)
	assert.Error(t, err)

	lock, err := NewRedisLock(store, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)
}
