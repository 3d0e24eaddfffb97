package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Manager admits sessions and routes their events.
type Manager struct {
	channel  *Channel
	registry Registry
	messages *Messages
	queries  *Queries
}

type Deps struct {
	Store     Store
	Registry  Registry
	Backplane Backplane
	Media     MediaResolver
	Notifier  Notifier
	Fanout    FanoutOptions
	PageLimit int
}

func NewManager(d Deps) *Manager {
	if d.Media == nil {
		d.Media = noMedia{}
	}
	channel := NewChannel(d.Backplane, d.Registry, d.Store)
	fanout := NewFanout(d.Store, d.Registry, channel, d.Media, d.Notifier, d.Fanout)
	return &Manager{
		channel:  channel,
		registry: d.Registry,
		messages: NewMessages(d.Store, channel, fanout, d.Media),
		queries:  NewQueries(d.Store, d.Media, d.PageLimit),
	}
}

// Start must be called once before sessions are registered.
func (m *Manager) Start(ctx context.Context) error {
	return m.channel.Start(ctx)
}

func (m *Manager) Channel() *Channel {
	return m.channel
}

func (m *Manager) Queries() *Queries {
	return m.queries
}

// Register admits a connection: its presence overwrites any older session of the user.
func (m *Manager) Register(ctx context.Context, c *Client) Session {
	s := m.channel.Attach(c)
	if err := m.registry.SetPresence(ctx, s.UserID, s.ID, 0); err != nil {
		log.Warn().Err(err).Int64("user_id", s.UserID).Str("session_id", s.ID).Msg("presence not recorded")
	}
	m.channel.SendToSession(s.ID, EventConnected, Success(MsgConnected, map[string]int64{"userId": s.UserID}))
	log.Info().Int64("user_id", s.UserID).Str("session_id", s.ID).Msg("session connected")
	return s
}

// Unregister drops the session. A newer session of the same user keeps its presence.
func (m *Manager) Unregister(ctx context.Context, c *Client) {
	s, ok := m.channel.Detach(c.SessionID)
	if !ok {
		return
	}
	if err := m.registry.ClearPresence(ctx, s.UserID, s.ID); err != nil {
		log.Warn().Err(err).Int64("user_id", s.UserID).Str("session_id", s.ID).Msg("presence not cleared")
	}
	log.Info().Int64("user_id", s.UserID).Str("session_id", s.ID).Msg("session disconnected")
}

// Handle runs one event; the caller always gets exactly one reply or error.
func (m *Manager) Handle(ctx context.Context, sessionID string, f Frame) {
	s, ok := m.channel.Session(sessionID)
	if !ok {
		return
	}

	switch f.Event {
	case EventJoinRoom:
		var req RoomRequest
		if !m.decode(sessionID, f, &req, MsgFailedToJoinRoom) {
			return
		}
		if err := m.channel.Join(ctx, sessionID, req.RoomID); err != nil {
			m.fail(sessionID, MsgFailedToJoinRoom, err)
			return
		}
		m.reply(sessionID, EventRoomJoined, Success(MsgRoomJoined, req))

	case EventLeaveRoom:
		var req RoomRequest
		if !m.decode(sessionID, f, &req, MsgFailedToLeaveRoom) {
			return
		}
		if err := m.channel.Leave(ctx, sessionID, req.RoomID); err != nil {
			m.fail(sessionID, MsgFailedToLeaveRoom, err)
			return
		}
		m.reply(sessionID, EventRoomLeft, Success(MsgRoomLeft, req))

	case EventSendMessage:
		var req SendRequest
		if !m.decode(sessionID, f, &req, MsgFailedToSendMessage) {
			return
		}
		env, err := m.messages.Send(ctx, s.UserID, req)
		m.outcome(sessionID, req.RoomID, EventNewMessage, MsgFailedToSendMessage, env, true, err)

	case EventUpdateMessage:
		var req EditRequest
		if !m.decode(sessionID, f, &req, MsgFailedToUpdateMessage) {
			return
		}
		env, err := m.messages.Edit(ctx, s.UserID, req)
		m.outcome(sessionID, req.RoomID, EventMessageUpdated, MsgFailedToUpdateMessage, env, true, err)

	case EventDeleteMessage:
		var req DeleteRequest
		if !m.decode(sessionID, f, &req, MsgFailedToDeleteMessage) {
			return
		}
		env, err := m.messages.Delete(ctx, s.UserID, req)
		m.outcome(sessionID, req.RoomID, EventMessageDeleted, MsgFailedToDeleteMessage, env, true, err)

	case EventAddReaction:
		var req ReactionRequest
		if !m.decode(sessionID, f, &req, MsgFailedToAddReaction) {
			return
		}
		env, sent, err := m.messages.React(ctx, s.UserID, req)
		m.outcome(sessionID, req.RoomID, EventReactionAdded, MsgFailedToAddReaction, env, sent, err)

	case EventDeleteReaction:
		var req ReactionRequest
		if !m.decode(sessionID, f, &req, MsgFailedToDeleteReaction) {
			return
		}
		env, sent, err := m.messages.Unreact(ctx, s.UserID, req)
		m.outcome(sessionID, req.RoomID, EventReactionDeleted, MsgFailedToDeleteReaction, env, sent, err)

	case EventListRooms:
		var req PageRequest
		if !m.decode(sessionID, f, &req, MsgFailedToListRooms) {
			return
		}
		rooms, err := m.queries.Rooms(ctx, s.UserID, req)
		if err != nil {
			m.fail(sessionID, MsgFailedToListRooms, err)
			return
		}
		m.reply(sessionID, EventRoomsFetched, Success(MsgRoomsListed, map[string]interface{}{
			"rooms": rooms, "page": req.Page, "searchQuery": nullable(req.SearchQuery),
		}))

	case EventListMessages:
		var req PageRequest
		if !m.decode(sessionID, f, &req, MsgFailedToListMessages) || !m.requireRoom(sessionID, req.RoomID) {
			return
		}
		msgs, err := m.queries.Messages(ctx, s.UserID, req)
		if err != nil {
			m.fail(sessionID, MsgFailedToListMessages, err)
			return
		}
		m.reply(sessionID, EventMessagesFetched, Success(MsgMessagesListed, map[string]interface{}{
			"roomId": req.RoomID, "messages": msgs, "page": req.Page,
		}))

	case EventGetMembers:
		var req PageRequest
		if !m.decode(sessionID, f, &req, MsgFailedToGetMembers) || !m.requireRoom(sessionID, req.RoomID) {
			return
		}
		members, err := m.queries.Members(ctx, s.UserID, req)
		if err != nil {
			m.fail(sessionID, MsgFailedToGetMembers, err)
			return
		}
		m.reply(sessionID, EventMembersFetched, Success(MsgMembersListed, map[string]interface{}{
			"roomId": req.RoomID, "members": members, "page": req.Page, "searchQuery": nullable(req.SearchQuery),
		}))

	default:
		m.reply(sessionID, EventError, Failure(MsgUnknownEvent, fmt.Errorf("%w: event %q", ErrInvalidData, f.Event)))
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// decode unmarshals f.Data into v and runs its validate tags. A failed
// request gets an error reply and false.
func (m *Manager) decode(sessionID string, f Frame, v interface{}, fallback string) bool {
	if len(f.Data) > 0 && string(f.Data) != "null" {
		if err := json.Unmarshal(f.Data, v); err != nil {
			m.fail(sessionID, fallback, fmt.Errorf("%w: %v", ErrInvalidData, err))
			return false
		}
	}
	if err := validateRequest(v); err != nil {
		m.fail(sessionID, fallback, err)
		return false
	}
	return true
}

// list-messages 和 get-members 必须带 roomId，list-rooms 不用
func (m *Manager) requireRoom(sessionID string, roomID int64) bool {
	if err := requireRoomID(roomID); err != nil {
		m.reply(sessionID, EventError, Failure(MsgRoomIDRequired, err))
		return false
	}
	return true
}

// outcome replies to a broadcasting event. Callers not subscribed to the room
// would miss the broadcast, and a no-op change is not broadcast at all, so in
// both cases the caller gets the event directly.
func (m *Manager) outcome(sessionID string, roomID int64, event, fallback string, env Envelope, broadcast bool, err error) {
	if err != nil {
		m.fail(sessionID, fallback, err)
		return
	}
	if !broadcast || !m.channel.IsSubscribed(sessionID, roomID) {
		m.reply(sessionID, event, env)
	}
}

func (m *Manager) reply(sessionID, event string, env Envelope) {
	m.channel.SendToSession(sessionID, event, env)
}

func (m *Manager) fail(sessionID, fallback string, err error) {
	if errors.Is(err, ErrPersistence) {
		log.Error().Err(err).Str("session_id", sessionID).Msg(fallback)
	} else {
		log.Debug().Err(err).Str("session_id", sessionID).Msg(fallback)
	}
	m.reply(sessionID, EventError, FailureFor(fallback, err))
}
