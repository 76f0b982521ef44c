package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Username   string `json:"username"`
	PostsCount int64  `json:"posts_count"`
}

func newTestCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, New(rdb, "test")
}

func TestCache_Aside(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()
	key := UserProfileKey("alice")

	calls := 0
	fetch := func(dest *profile) func() error {
		return func() error {
			calls++
			*dest = profile{Username: "alice", PostsCount: 3}
			return nil
		}
	}

	var first profile
	require.NoError(t, c.Aside(ctx, key, &first, time.Minute, fetch(&first)))
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	var second profile
	require.NoError(t, c.Aside(ctx, key, &second, time.Minute, fetch(&second)))
	assert.Equal(t, 1, calls, "second lookup should be served from cache")
	assert.Equal(t, first, second)

	c.Invalidate(ctx, key)
	assert.False(t, mr.Exists(key))
}

func TestCache_AsideFetchError(t *testing.T) {
	mr, c := newTestCache(t)
	boom := errors.New("db down")

	var p profile
	err := c.Aside(context.Background(), "k", &p, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestCache_RedisDownFallsThrough(t *testing.T) {
	mr, c := newTestCache(t)
	mr.Close()

	var p profile
	err := c.Aside(context.Background(), "k", &p, time.Minute, func() error {
		p.Username = "bob"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", p.Username)
}

func TestCache_NilClient(t *testing.T) {
	c := New(nil, "none")
	assert.False(t, c.Enabled())

	found, err := c.GetJSON(context.Background(), "k", &profile{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.SetJSON(context.Background(), "k", profile{}, time.Minute))
	c.Invalidate(context.Background(), "k")

	var nilCache *Cache
	assert.False(t, nilCache.Enabled())
}

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb := InitRedis("redis://" + mr.Addr() + "/0")
	require.NotNil(t, rdb)
	assert.Same(t, rdb, GetClient())
	_ = rdb.Close()

	assert.Nil(t, InitRedis(""))
	assert.Nil(t, GetClient())
	assert.Nil(t, InitRedis("redis://%zz"))
}
