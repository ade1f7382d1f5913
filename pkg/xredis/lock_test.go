package xredis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	first := NewDistLock(rdb, "sweeper:cycle", time.Minute)
	second := NewDistLock(rdb, "sweeper:cycle", time.Minute)

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "锁已被持有")

	// 别人的 token 删不掉
	released, err := second.Unlock(ctx)
	require.NoError(t, err)
	assert.False(t, released)

	released, err = first.Unlock(ctx)
	require.NoError(t, err)
	assert.True(t, released)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDistLock_Expires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	l := NewDistLock(rdb, "sweeper:cycle", 10*time.Second)
	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	other := NewDistLock(rdb, "sweeper:cycle", 10*time.Second)
	ok, err = other.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
