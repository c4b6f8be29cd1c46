package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-rooms/internal/cache"
	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/internal/testutil"
)

func TestRedisRoomCache(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	c := cache.NewRedisRoomCache(client, "test")
	ctx := context.Background()

	key := c.BuildKeyByName("abc123")
	assert.Equal(t, "test:name:abc123", key)

	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	room := domain.Room{Name: "abc123", HostIdentity: "U1", IsPublic: true, DisplayTitle: "Morning"}
	require.NoError(t, c.Set(ctx, key, &cache.RoomCacheResult{Room: room}, time.Minute))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "U1", got.Room.HostIdentity)
	assert.Equal(t, "Morning", got.Room.DisplayTitle)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, key, &cache.RoomCacheResult{Room: room}, time.Minute))
	require.NoError(t, c.Delete(ctx, key))
	require.NoError(t, c.Delete(ctx))
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
