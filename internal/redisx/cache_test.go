package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return &Cache{RDB: rdb}, mr
}

func TestCache_Status(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)

	_, ok, err := c.Status(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetStatus(ctx, 1, orders.StatusAccepted))
	e, ok, err := c.Status(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StatusEntry{OrderID: 1, Status: orders.StatusAccepted}, e)
	assert.Equal(t, TTLStatusCache, mr.TTL(fmt.Sprintf(KeyRequestStatus, 1)))

	mr.FastForward(TTLStatusCache + time.Second)
	_, ok, err = c.Status(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Idempotency(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t)

	_, ok, err := c.RequestFor(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.RememberRequest(ctx, "k1", 42))
	id, ok, err := c.RequestFor(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok, err = c.RequestFor(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok, "an empty key is never remembered")
}

func TestCache_NilIsEmpty(t *testing.T) {
	ctx := context.Background()
	var c *Cache

	require.NoError(t, c.SetStatus(ctx, 1, orders.StatusPaid))
	_, ok, err := c.Status(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.RememberRequest(ctx, "k", 1))
}

func TestMarkOnce(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)
	key := fmt.Sprintf(KeyDedup, "verifier", "evt-1")

	first, err := MarkOnce(ctx, c.RDB, key, TTLDedup)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := MarkOnce(ctx, c.RDB, key, TTLDedup)
	require.NoError(t, err)
	assert.False(t, again)

	assert.Equal(t, TTLDedup, mr.TTL(key))
}

func TestCache_ClaimRequest(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)

	claimed, _, err := c.ClaimRequest(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, TTLIdemClaim, mr.TTL(fmt.Sprintf(KeyIdemRequestCreate, "k1")))

	claimed, _, err = c.ClaimRequest(ctx, "k1")
	assert.ErrorIs(t, err, ErrInFlight)
	assert.False(t, claimed)

	require.NoError(t, c.RememberRequest(ctx, "k1", 9))
	claimed, id, err := c.ClaimRequest(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, int64(9), id)

	claimed, _, err = c.ClaimRequest(ctx, "k2")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, c.ReleaseRequest(ctx, "k2"))
	claimed, _, err = c.ClaimRequest(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, claimed, "a released key can be claimed again")

	var disabled *Cache
	claimed, _, err = disabled.ClaimRequest(ctx, "k3")
	require.NoError(t, err)
	assert.True(t, claimed)
}
