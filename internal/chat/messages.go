package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pelusa-v/roomchat/internal/data"
)

// Messages applies create, edit, delete and reaction transitions.
// Checks run before any write; only committed changes are broadcast.
type Messages struct {
	store   Store
	channel *Channel
	fanout  *Fanout
	media   MediaResolver
}

func NewMessages(store Store, channel *Channel, fanout *Fanout, media MediaResolver) *Messages {
	if media == nil {
		media = noMedia{}
	}
	return &Messages{store: store, channel: channel, fanout: fanout, media: media}
}

func (m *Messages) checkAccess(ctx context.Context, userID, roomID int64) error {
	ok, err := m.store.HasAccess(ctx, userID, roomID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return fmt.Errorf("%w: room %d", ErrAccessDenied, roomID)
	}
	return nil
}

func (m *Messages) loadMessage(ctx context.Context, id int64) (*data.Message, error) {
	msg, err := m.store.GetMessage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: message %d", ErrNotFound, id)
	}
	return msg, nil
}

func (m *Messages) view(ctx context.Context, id, viewerID int64) (*data.MessageView, error) {
	v, err := m.store.MessageView(ctx, id, viewerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: message %d", ErrNotFound, id)
	}
	resolveView(ctx, m.media, v)
	return v, nil
}

// Send persists a message with its mentions and media, broadcasts new-message
// and refreshes every member's inbox, notifying offline members.
func (m *Messages) Send(ctx context.Context, authorID int64, req SendRequest) (Envelope, error) {
	if err := validateRequest(&req); err != nil {
		return Envelope{}, err
	}
	room, err := m.store.GetRoom(ctx, req.RoomID)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if room == nil {
		return Envelope{}, fmt.Errorf("%w: room %d", ErrNotFound, req.RoomID)
	}
	if err := m.checkAccess(ctx, authorID, req.RoomID); err != nil {
		return Envelope{}, err
	}
	if req.ParentMessageID != nil {
		parent, err := m.store.GetMessage(ctx, *req.ParentMessageID)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if parent == nil || parent.RoomID != req.RoomID {
			return Envelope{}, fmt.Errorf("%w: parent message %d", ErrInvalidData, *req.ParentMessageID)
		}
	}

	msg := &data.Message{
		RoomID:          req.RoomID,
		UserID:          authorID,
		Type:            req.Type,
		Value:           req.Value,
		ParentMessageID: req.ParentMessageID,
	}
	var media *data.Media
	if req.Media != nil {
		media = &data.Media{
			UserID:    authorID,
			FileType:  req.Media.FileType,
			Type:      req.Media.Type,
			FileName:  req.Media.FileName,
			Thumbnail: req.Media.Thumbnail,
		}
	}
	if err := m.store.InsertMessage(ctx, msg, req.Mentions, media); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	v, err := m.view(ctx, msg.ID, authorID)
	if err != nil {
		return Envelope{}, err
	}
	v.PrevID = json.RawMessage(req.ClientID)

	env := Success(MsgMessageSent, v)
	m.channel.Broadcast(ctx, req.RoomID, EventNewMessage, env)

	summary := data.Summary{
		RoomID:     req.RoomID,
		MessageID:  msg.ID,
		AuthorID:   authorID,
		AuthorName: v.User.FirstName,
		Type:       msg.Type,
		Value:      msg.Value,
	}
	if _, err := m.fanout.Propagate(ctx, req.RoomID, msg.ID, true, &summary); err != nil {
		log.Error().Err(err).Int64("room_id", req.RoomID).Int64("message_id", msg.ID).Msg("inbox fan-out failed")
	}
	return env, nil
}

// Edit replaces the body of a text message owned by editorID.
func (m *Messages) Edit(ctx context.Context, editorID int64, req EditRequest) (Envelope, error) {
	if err := validateRequest(&req); err != nil {
		return Envelope{}, err
	}
	msg, err := m.loadMessage(ctx, req.MessageID)
	if err != nil {
		return Envelope{}, err
	}
	if msg.Type != data.MessageText {
		return Envelope{}, fmt.Errorf("%w: only text messages can be edited", ErrPermissionDenied)
	}
	if msg.UserID != editorID {
		return Envelope{}, fmt.Errorf("%w: not the author", ErrPermissionDenied)
	}
	if msg.RoomID != req.RoomID {
		return Envelope{}, fmt.Errorf("%w: message %d is not in room %d", ErrInvalidData, msg.ID, req.RoomID)
	}

	wasLast, err := m.store.UpdateMessage(ctx, msg.ID, req.Value, req.Mentions)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	v, err := m.view(ctx, msg.ID, editorID)
	if err != nil {
		return Envelope{}, err
	}

	env := Success(MsgMessageUpdated, v)
	m.channel.Broadcast(ctx, msg.RoomID, EventMessageUpdated, env)

	// 编辑不再通知离线成员
	if wasLast {
		if _, err := m.fanout.Propagate(ctx, msg.RoomID, 0, false, nil); err != nil {
			log.Error().Err(err).Int64("room_id", msg.RoomID).Msg("inbox fan-out failed")
		}
	}
	return env, nil
}

// Delete removes a message; allowed for its author and room operators.
func (m *Messages) Delete(ctx context.Context, deleterID int64, req DeleteRequest) (Envelope, error) {
	if err := validateRequest(&req); err != nil {
		return Envelope{}, err
	}
	msg, err := m.loadMessage(ctx, req.MessageID)
	if err != nil {
		return Envelope{}, err
	}
	if msg.UserID != deleterID {
		op, err := m.store.IsOperator(ctx, deleterID, msg.RoomID)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if !op {
			return Envelope{}, fmt.Errorf("%w: not the author or an operator", ErrPermissionDenied)
		}
	}
	if msg.RoomID != req.RoomID {
		return Envelope{}, fmt.Errorf("%w: message %d is not in room %d", ErrInvalidData, msg.ID, req.RoomID)
	}

	wasLast, err := m.store.DeleteMessage(ctx, msg.ID)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	env := Success(MsgMessageDeleted, map[string]int64{"messageId": msg.ID, "roomId": msg.RoomID})
	m.channel.Broadcast(ctx, msg.RoomID, EventMessageDeleted, env)

	// 最新消息被删，按持久化状态重新计算预览
	if wasLast {
		if _, err := m.fanout.Propagate(ctx, msg.RoomID, 0, false, nil); err != nil {
			log.Error().Err(err).Int64("room_id", msg.RoomID).Msg("inbox fan-out failed")
		}
	}
	return env, nil
}

func (m *Messages) reactionTarget(ctx context.Context, userID int64, req ReactionRequest) error {
	if err := validateRequest(&req); err != nil {
		return err
	}
	if err := m.checkAccess(ctx, userID, req.RoomID); err != nil {
		return err
	}
	msg, err := m.loadMessage(ctx, req.MessageID)
	if err != nil {
		return err
	}
	if msg.RoomID != req.RoomID {
		return fmt.Errorf("%w: message %d in room %d", ErrNotFound, req.MessageID, req.RoomID)
	}
	return nil
}

// React sets the user's reaction, replacing any previous value. The bool
// reports whether reaction-added went out to the room; setting the value the
// user already has changes nothing and is not broadcast.
func (m *Messages) React(ctx context.Context, userID int64, req ReactionRequest) (Envelope, bool, error) {
	if err := m.reactionTarget(ctx, userID, req); err != nil {
		return Envelope{}, false, err
	}
	previous, err := m.store.AddReaction(ctx, req.MessageID, userID, req.Value)
	if err != nil {
		return Envelope{}, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	env := Success(MsgReactionAdded, ReactionEvent{
		MessageID:     req.MessageID,
		UserID:        userID,
		Value:         req.Value,
		PreviousValue: previous,
		RoomID:        req.RoomID,
	})
	if previous == req.Value {
		return env, false, nil
	}
	m.channel.Broadcast(ctx, req.RoomID, EventReactionAdded, env)
	return env, true, nil
}

// Unreact removes the reaction. Removing one that is gone still succeeds but
// broadcasts nothing.
func (m *Messages) Unreact(ctx context.Context, userID int64, req ReactionRequest) (Envelope, bool, error) {
	if err := m.reactionTarget(ctx, userID, req); err != nil {
		return Envelope{}, false, err
	}
	deleted, err := m.store.DeleteReaction(ctx, req.MessageID, userID, req.Value)
	if err != nil {
		return Envelope{}, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	env := Success(MsgReactionDeleted, ReactionEvent{MessageID: req.MessageID, UserID: userID, Value: req.Value, RoomID: req.RoomID})
	if !deleted {
		return env, false, nil
	}
	m.channel.Broadcast(ctx, req.RoomID, EventReactionDeleted, env)
	return env, true, nil
}
