package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Channel subscribes local sessions to topics and fans backplane frames out to them.
// Topics are room:<id> and the personal user:<id>.
type Channel struct {
	bus      Backplane
	registry Registry
	store    Store

	mu       sync.RWMutex
	sessions map[string]Session            // session id -> session
	clients  map[string]*Client            // session id -> transport
	topics   map[string]map[string]*Client // topic -> session id -> transport
}

func NewChannel(bus Backplane, registry Registry, store Store) *Channel {
	return &Channel{
		bus:      bus,
		registry: registry,
		store:    store,
		sessions: map[string]Session{},
		clients:  map[string]*Client{},
		topics:   map[string]map[string]*Client{},
	}
}

// Start subscribes to the backplane and delivers frames until ctx is done.
func (ch *Channel) Start(ctx context.Context) error {
	deliveries, err := ch.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe backplane: %w", err)
	}
	go func() {
		for d := range deliveries {
			ch.deliver(d.Topic, d.Payload)
		}
	}()
	return nil
}

func (ch *Channel) subscribe(topic string, c *Client) {
	if _, ok := ch.topics[topic]; !ok {
		ch.topics[topic] = map[string]*Client{}
	}
	ch.topics[topic][c.SessionID] = c
}

func (ch *Channel) unsubscribe(topic, sessionID string) {
	if subs, ok := ch.topics[topic]; ok {
		delete(subs, sessionID)
		if len(subs) == 0 {
			delete(ch.topics, topic)
		}
	}
}

// Attach registers a new session and subscribes it to its personal topic.
func (ch *Channel) Attach(c *Client) Session {
	s := Session{ID: c.SessionID, UserID: c.UserID}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.sessions[s.ID] = s
	ch.clients[s.ID] = c
	ch.subscribe(UserTopic(s.UserID), c)
	return s
}

// Detach drops every subscription of the session and closes its send queue.
func (ch *Channel) Detach(sessionID string) (Session, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	s, ok := ch.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	for topic := range ch.topics {
		ch.unsubscribe(topic, sessionID)
	}
	if c := ch.clients[sessionID]; c != nil {
		close(c.Send)
	}
	delete(ch.clients, sessionID)
	delete(ch.sessions, sessionID)
	return s, true
}

func (ch *Channel) Session(sessionID string) (Session, bool) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	s, ok := ch.sessions[sessionID]
	return s, ok
}

func (ch *Channel) IsSubscribed(sessionID string, roomID int64) bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	_, ok := ch.topics[RoomTopic(roomID)][sessionID]
	return ok
}

// Join subscribes the session to the room after checking the room exists and the user is a member.
func (ch *Channel) Join(ctx context.Context, sessionID string, roomID int64) error {
	s, ok := ch.Session(sessionID)
	if !ok {
		return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	room, err := ch.store.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if room == nil {
		return fmt.Errorf("%w: room %d", ErrNotFound, roomID)
	}
	allowed, err := ch.store.HasAccess(ctx, s.UserID, roomID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !allowed {
		return fmt.Errorf("%w: room %d", ErrAccessDenied, roomID)
	}

	ch.mu.Lock()
	c, ok := ch.clients[sessionID]
	if ok {
		ch.subscribe(RoomTopic(roomID), c)
		s.RoomID = roomID
		ch.sessions[sessionID] = s
	}
	ch.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}

	if err := ch.registry.UpdateRoom(ctx, s.UserID, sessionID, roomID); err != nil {
		log.Warn().Err(err).Int64("user_id", s.UserID).Int64("room_id", roomID).Msg("presence not updated on join")
	}
	return nil
}

// Leave unsubscribes the session; the current room is cleared only when it is roomID.
func (ch *Channel) Leave(ctx context.Context, sessionID string, roomID int64) error {
	ch.mu.Lock()
	s, ok := ch.sessions[sessionID]
	cleared := false
	if ok {
		ch.unsubscribe(RoomTopic(roomID), sessionID)
		if s.RoomID == roomID {
			s.RoomID = 0
			ch.sessions[sessionID] = s
			cleared = true
		}
	}
	ch.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}

	if cleared {
		if err := ch.registry.UpdateRoom(ctx, s.UserID, sessionID, 0); err != nil {
			log.Warn().Err(err).Int64("user_id", s.UserID).Int64("room_id", roomID).Msg("presence not updated on leave")
		}
	}
	return nil
}

// Broadcast reaches every session subscribed to the room on any process.
func (ch *Channel) Broadcast(ctx context.Context, roomID int64, event string, env Envelope) {
	ch.publish(ctx, RoomTopic(roomID), event, env)
}

// SendToUser reaches the sessions of the user on any process.
func (ch *Channel) SendToUser(ctx context.Context, userID int64, event string, env Envelope) {
	ch.publish(ctx, UserTopic(userID), event, env)
}

// SendToSession writes to a local session only.
func (ch *Channel) SendToSession(sessionID, event string, env Envelope) {
	payload, err := encodeFrame(event, env)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	if c := ch.clients[sessionID]; c != nil {
		ch.push(c, payload)
	}
}

func (ch *Channel) publish(ctx context.Context, topic, event string, env Envelope) {
	payload, err := encodeFrame(event, env)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}
	if err := ch.bus.Publish(ctx, topic, payload); err != nil {
		// 背板不可用时至少送达本进程的订阅者
		log.Warn().Err(err).Str("topic", topic).Msg("backplane publish failed, delivering locally")
		ch.deliver(topic, payload)
	}
}

func (ch *Channel) deliver(topic string, payload []byte) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	for _, c := range ch.topics[topic] {
		ch.push(c, payload)
	}
}

// push never blocks; a full queue drops the frame. Caller holds mu.
func (ch *Channel) push(c *Client, payload []byte) {
	select {
	case c.Send <- payload:
	default:
		log.Debug().Str("session_id", c.SessionID).Msg("send queue full, frame dropped")
	}
}
