package mpesa

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) (*RedisTokenCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisTokenCache(rdb, "duka:mpesa:token"), mr
}

func TestRedisTokenCache(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	_, ok := c.Get(ctx)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "abc", time.Minute))
	tok, ok := c.Get(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
	assert.Equal(t, time.Minute, mr.TTL("duka:mpesa:token"))

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx)
	assert.False(t, ok)
}

func TestRedisTokenCache_RejectsNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	assert.Error(t, c.Set(ctx, "abc", 0))
	assert.Error(t, c.Set(ctx, "abc", -time.Second))
	assert.False(t, mr.Exists("duka:mpesa:token"))
}

func TestRedisTokenCache_Unreachable(t *testing.T) {
	c, mr := newRedisCache(t)
	mr.Close()

	_, ok := c.Get(context.Background())
	assert.False(t, ok)
}

func TestClient_SharesTokenThroughRedis(t *testing.T) {
	ctx := context.Background()
	cache, mr := newRedisCache(t)
	f := &fakeDaraja{queryReply: `{"ResponseCode":"0","ResultCode":"0","ResultDesc":"The service request is processed successfully."}`}

	first := newCachedTestClient(t, f, cache)
	_, err := first.QueryStatus(ctx, "ws_CO_1")
	require.NoError(t, err)

	second := newCachedTestClient(t, f, cache)
	_, err = second.QueryStatus(ctx, "ws_CO_1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.tokenCalls))
	stored, err := mr.Get("duka:mpesa:token")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", stored)
}
