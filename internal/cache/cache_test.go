package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	r := NewRedis(mr.Addr(), ttl)
	t.Cleanup(func() { r.Close() })
	return mr, r
}

func TestRedisRoundTrip(t *testing.T) {
	mr, r := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	_, ok, err := r.Get(ctx, "instance:ti-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "instance:ti-1", []byte(`{"id":"ti-1"}`)))
	got, ok, err := r.Get(ctx, "instance:ti-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"ti-1"}`, string(got))

	assert.True(t, mr.Exists("examprep:instance:ti-1"))
	assert.Equal(t, time.Minute, mr.TTL("examprep:instance:ti-1"))

	mr.FastForward(2 * time.Minute)
	_, ok, err = r.Get(ctx, "instance:ti-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisUnavailable(t *testing.T) {
	mr, r := setupTestRedis(t, 0)
	mr.Close()

	_, ok, err := r.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, r.Set(context.Background(), "k", []byte("v")))
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	require.NoError(t, c.Set(context.Background(), "k", []byte("v")))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
