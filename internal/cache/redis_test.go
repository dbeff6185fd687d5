package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "cache:flights", flightsKey())
	assert.Equal(t, "lock:bill:b-1", billLockKey("b-1"))
}

func TestNewRedisCache(t *testing.T) {
	c := NewRedisCache(config.RedisConfig{Addr: "localhost:6379"}, time.Minute)
	assert.NotNil(t, c)
	assert.Equal(t, time.Minute, c.flightsTTL)
	assert.NoError(t, c.Close())
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	c := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}), time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	return c, srv
}

func TestRedisCache_Flights(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	flights, err := c.GetFlights(ctx)
	require.NoError(t, err)
	assert.Nil(t, flights)

	require.NoError(t, c.SetFlights(ctx, []domain.Flight{{ID: "PK-GAA-001", OriginAirport: "CGK"}}))
	flights, err = c.GetFlights(ctx)
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.Equal(t, "PK-GAA-001", flights[0].ID)

	require.NoError(t, c.InvalidateFlights(ctx))
	flights, err = c.GetFlights(ctx)
	require.NoError(t, err)
	assert.Nil(t, flights)
}

func TestRedisCache_BillLock(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	token, acquired, err := c.AcquireBillLock(ctx, "b-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.NotEmpty(t, token)

	_, acquired, err = c.AcquireBillLock(ctx, "b-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, c.ReleaseBillLock(ctx, "b-1", token))
	_, acquired, err = c.AcquireBillLock(ctx, "b-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestRedisCache_ReleaseKeepsLockTakenAfterExpiry(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	stale, acquired, err := c.AcquireBillLock(ctx, "b-1", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	srv.FastForward(2 * time.Second)

	current, acquired, err := c.AcquireBillLock(ctx, "b-1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, c.ReleaseBillLock(ctx, "b-1", stale))
	held, err := srv.Get(billLockKey("b-1"))
	require.NoError(t, err)
	assert.Equal(t, current, held)

	require.NoError(t, c.ReleaseBillLock(ctx, "b-1", current))
	assert.False(t, srv.Exists(billLockKey("b-1")))
}
