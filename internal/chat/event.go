package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pelusa-v/roomchat/internal/data"
)

// inbound
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventSendMessage    = "send-message"
	EventUpdateMessage  = "update-message"
	EventDeleteMessage  = "delete-message"
	EventAddReaction    = "add-reaction"
	EventDeleteReaction = "delete-reaction"
	EventListRooms      = "list-rooms"
	EventListMessages   = "list-messages"
	EventGetMembers     = "get-members"
)

// outbound
const (
	EventConnected       = "connected"
	EventRoomJoined      = "room-joined"
	EventRoomLeft        = "room-left"
	EventNewMessage      = "new-message"
	EventMessageUpdated  = "message-updated"
	EventMessageDeleted  = "message-deleted"
	EventReactionAdded   = "reaction-added"
	EventReactionDeleted = "reaction-deleted"
	EventRoomsFetched    = "rooms-fetched"
	EventMessagesFetched = "messages-fetched"
	EventMembersFetched  = "members-fetched"
	EventUpdateInbox     = "update-inbox"
	EventError           = "error"
)

// Frame is one websocket message in either direction: {"event": ..., "data": ...}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(event string, env Envelope) ([]byte, error) {
	return json.Marshal(struct {
		Event string   `json:"event"`
		Data  Envelope `json:"data"`
	}{event, env})
}

// TempID is the client generated id of an unsent message, kept as the raw JSON
// string or number so it is echoed back exactly as sent.
type TempID json.RawMessage

func (t *TempID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		*t = nil
		return nil
	}
	if len(b) == 0 || (b[0] != '"' && b[0] != '-' && (b[0] < '0' || b[0] > '9')) {
		return fmt.Errorf("id must be a string or a number, got %s", b)
	}
	*t = append((*t)[:0], b...)
	return nil
}

func (t TempID) MarshalJSON() ([]byte, error) {
	if len(t) == 0 {
		return []byte("null"), nil
	}
	return t, nil
}

type RoomRequest struct {
	RoomID int64 `json:"roomId" validate:"required"`
}

type PageRequest struct {
	RoomID      int64  `json:"roomId"`
	Page        int    `json:"page"`
	SearchQuery string `json:"searchQuery"`
}

type MediaInput struct {
	FileType  string `json:"fileType"`
	Type      string `json:"type" validate:"required"`
	FileName  string `json:"fileName" validate:"required"`
	Thumbnail string `json:"thumbnail"`
}

type SendRequest struct {
	ClientID        TempID           `json:"id" validate:"required"`
	Type            data.MessageType `json:"type" validate:"required,oneof=text image video"`
	Value           string           `json:"value" validate:"notblank"`
	RoomID          int64            `json:"roomId" validate:"required"`
	ParentMessageID *int64           `json:"parentMessageId" validate:"omitempty,gt=0"`
	Mentions        []int64          `json:"mentions" validate:"omitempty,dive,gt=0"`
	Media           *MediaInput      `json:"media"`
}

type EditRequest struct {
	MessageID int64   `json:"messageId" validate:"required"`
	RoomID    int64   `json:"roomId" validate:"required"`
	Value     string  `json:"value" validate:"notblank"`
	Mentions  []int64 `json:"mentions" validate:"omitempty,dive,gt=0"`
}

type DeleteRequest struct {
	MessageID int64 `json:"messageId" validate:"required"`
	RoomID    int64 `json:"roomId" validate:"required"`
}

type ReactionRequest struct {
	MessageID int64  `json:"messageId" validate:"required"`
	RoomID    int64  `json:"roomId" validate:"required"`
	Value     string `json:"value" validate:"notblank"`
}

type ReadRequest struct {
	RoomID    int64 `json:"roomId" validate:"required"`
	MessageID int64 `json:"messageId" validate:"required"`
}

// reaction-added / reaction-deleted payload. PreviousValue is the reaction the
// new one replaced.
type ReactionEvent struct {
	MessageID     int64  `json:"messageId"`
	UserID        int64  `json:"userId"`
	Value         string `json:"value"`
	PreviousValue string `json:"previousValue,omitempty"`
	RoomID        int64  `json:"roomId"`
}

// 频道名：room:<id> / user:<id>
func RoomTopic(roomID int64) string {
	return "room:" + strconv.FormatInt(roomID, 10)
}

func UserTopic(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}
