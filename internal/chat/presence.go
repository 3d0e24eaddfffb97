package chat

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

type Presence struct {
	IsOnline  bool
	SessionID string
	RoomID    int64
}

// Registry answers whether a user is online, on which session and in which room,
// for every process sharing the same store.
type Registry interface {
	SetPresence(ctx context.Context, userID int64, sessionID string, roomID int64) error
	GetPresence(ctx context.Context, userID int64) Presence
	// UpdateRoom changes the room of the record only while it still belongs to sessionID.
	UpdateRoom(ctx context.Context, userID int64, sessionID string, roomID int64) error
	// ClearPresence removes the record only while it still belongs to sessionID.
	ClearPresence(ctx context.Context, userID int64, sessionID string) error
}

const (
	fieldSession = "sessionId"
	fieldRoom    = "roomId"
)

var (
	updateRoomScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'sessionId') == ARGV[1] then
	redis.call('HSET', KEYS[1], 'roomId', ARGV[2])
	if tonumber(ARGV[3]) > 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[3])
	end
	return 1
end
return 0`)

	clearScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'sessionId') == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0`)
)

// RedisRegistry keeps one hash per user at <prefix>presence:<userId>.
type RedisRegistry struct {
	rdb     redis.UniversalClient
	prefix  string
	timeout time.Duration
	ttl     time.Duration
}

type RegistryOptions struct {
	Prefix  string
	Timeout time.Duration
	// TTL of the record, 0 keeps it until disconnect.
	TTL time.Duration
}

func NewRedisRegistry(rdb redis.UniversalClient, opts RegistryOptions) *RedisRegistry {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	return &RedisRegistry{rdb: rdb, prefix: opts.Prefix, timeout: opts.Timeout, ttl: opts.TTL}
}

func (r *RedisRegistry) key(userID int64) string {
	return r.prefix + "presence:" + strconv.FormatInt(userID, 10)
}

// SetPresence overwrites the whole record, last session wins.
func (r *RedisRegistry) SetPresence(ctx context.Context, userID int64, sessionID string, roomID int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	key := r.key(userID)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldSession, sessionID, fieldRoom, strconv.FormatInt(roomID, 10))
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: set presence: %v", ErrPresenceDegraded, err)
	}
	return nil
}

// GetPresence never fails: a missing record or a store error both read as offline.
func (r *RedisRegistry) GetPresence(ctx context.Context, userID int64) Presence {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vals, err := r.rdb.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg(ErrPresenceDegraded.Error())
		return Presence{}
	}
	sid, ok := vals[fieldSession]
	if !ok || sid == "" {
		return Presence{}
	}
	roomID, _ := strconv.ParseInt(vals[fieldRoom], 10, 64)
	return Presence{IsOnline: true, SessionID: sid, RoomID: roomID}
}

func (r *RedisRegistry) UpdateRoom(ctx context.Context, userID int64, sessionID string, roomID int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// TTL 只在 session 仍匹配时刷新
	err := updateRoomScript.Run(ctx, r.rdb, []string{r.key(userID)},
		sessionID, strconv.FormatInt(roomID, 10), r.ttl.Milliseconds()).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("%w: update room: %v", ErrPresenceDegraded, err)
	}
	return nil
}

func (r *RedisRegistry) ClearPresence(ctx context.Context, userID int64, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := clearScript.Run(ctx, r.rdb, []string{r.key(userID)}, sessionID).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("%w: clear presence: %v", ErrPresenceDegraded, err)
	}
	return nil
}
