package router_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remodlai/nova-gateway/internal/router"
)

func TestMemoryCooldowns(t *testing.T) {
	s := router.NewMemoryCooldowns()
	defer s.Close()
	ctx := context.Background()

	active, err := s.Active(ctx, "dep-1")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, s.Put(ctx, "dep-1", time.Minute))
	active, err = s.Active(ctx, "dep-1")
	require.NoError(t, err)
	assert.True(t, active)

	// Expired entries report inactive even before the sweeper runs.
	require.NoError(t, s.Put(ctx, "dep-2", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	active, err = s.Active(ctx, "dep-2")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestMemoryCooldowns_CloseIsIdempotent(t *testing.T) {
	s := router.NewMemoryCooldowns()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestRedisCooldowns(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := router.NewRedisCooldowns(router.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	active, err := s.Active(ctx, "dep-1")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, s.Put(ctx, "dep-1", time.Minute))
	active, err = s.Active(ctx, "dep-1")
	require.NoError(t, err)
	assert.True(t, active)

	// TTL expiry clears the cooldown.
	mr.FastForward(2 * time.Minute)
	active, err = s.Active(ctx, "dep-1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestNewRedisCooldowns_Unreachable(t *testing.T) {
	_, err := router.NewRedisCooldowns(router.RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis cooldown store")
}
