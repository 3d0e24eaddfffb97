package chat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, opts RegistryOptions) (*RedisRegistry, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRegistry(rdb, opts), mr
}

func TestPresenceLifecycle(t *testing.T) {
	reg, _ := newRegistry(t, RegistryOptions{Prefix: "test:"})
	ctx := context.Background()

	assert.Equal(t, Presence{}, reg.GetPresence(ctx, 1))

	require.NoError(t, reg.SetPresence(ctx, 1, "s1", 7))
	want := Presence{IsOnline: true, SessionID: "s1", RoomID: 7}
	assert.Equal(t, want, reg.GetPresence(ctx, 1))

	// idempotent
	require.NoError(t, reg.SetPresence(ctx, 1, "s1", 7))
	assert.Equal(t, want, reg.GetPresence(ctx, 1))

	require.NoError(t, reg.ClearPresence(ctx, 1, "s1"))
	assert.False(t, reg.GetPresence(ctx, 1).IsOnline)
}

func TestPresenceLastSessionWins(t *testing.T) {
	reg, _ := newRegistry(t, RegistryOptions{})
	ctx := context.Background()

	require.NoError(t, reg.SetPresence(ctx, 1, "old", 7))
	require.NoError(t, reg.SetPresence(ctx, 1, "new", 0))

	tests := []struct {
		name string
		op   func() error
	}{
		{name: "stale room update", op: func() error { return reg.UpdateRoom(ctx, 1, "old", 9) }},
		{name: "stale disconnect", op: func() error { return reg.ClearPresence(ctx, 1, "old") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.op())
			assert.Equal(t, Presence{IsOnline: true, SessionID: "new"}, reg.GetPresence(ctx, 1))
		})
	}

	require.NoError(t, reg.UpdateRoom(ctx, 1, "new", 9))
	assert.Equal(t, int64(9), reg.GetPresence(ctx, 1).RoomID)
}

func TestPresenceTTL(t *testing.T) {
	reg, mr := newRegistry(t, RegistryOptions{TTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, reg.SetPresence(ctx, 1, "s1", 0))
	assert.True(t, reg.GetPresence(ctx, 1).IsOnline)
	mr.FastForward(2 * time.Minute)
	assert.False(t, reg.GetPresence(ctx, 1).IsOnline)
}

func TestStaleRoomUpdateKeepsTTL(t *testing.T) {
	reg, mr := newRegistry(t, RegistryOptions{TTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, reg.SetPresence(ctx, 1, "new", 0))
	mr.FastForward(40 * time.Second)

	require.NoError(t, reg.UpdateRoom(ctx, 1, "old", 9))
	assert.Equal(t, 20*time.Second, mr.TTL("presence:1"))
	assert.Zero(t, reg.GetPresence(ctx, 1).RoomID)

	require.NoError(t, reg.UpdateRoom(ctx, 1, "new", 9))
	assert.Equal(t, time.Minute, mr.TTL("presence:1"))
	assert.Equal(t, int64(9), reg.GetPresence(ctx, 1).RoomID)
}

func TestPresenceDegradesToOffline(t *testing.T) {
	reg, mr := newRegistry(t, RegistryOptions{Timeout: 200 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, reg.SetPresence(ctx, 1, "s1", 0))

	mr.Close()
	assert.Equal(t, Presence{}, reg.GetPresence(ctx, 1))
	err := reg.SetPresence(ctx, 1, "s1", 0)
	assert.ErrorIs(t, err, ErrPresenceDegraded)
}
