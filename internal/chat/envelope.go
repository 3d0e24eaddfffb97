package chat

import (
	"encoding/json"
	"errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// success messages
const (
	MsgConnected       = "Connected and authenticated successfully"
	MsgRoomJoined      = "Successfully joined room"
	MsgRoomLeft        = "Successfully left room"
	MsgRoomsListed     = "Rooms retrieved successfully"
	MsgMessagesListed  = "Messages retrieved successfully"
	MsgMembersListed   = "Members retrieved successfully"
	MsgMessageSent     = "Message sent successfully"
	MsgMessageUpdated  = "Message updated successfully"
	MsgMessageDeleted  = "Message deleted successfully"
	MsgReactionAdded   = "Reaction added successfully"
	MsgReactionDeleted = "Reaction deleted successfully"
	MsgInboxUpdated    = "Inbox updated successfully"
	MsgReadMarked      = "Messages marked as read"
)

// error messages
const (
	MsgAuthTokenRequired      = "Authentication token required"
	MsgInvalidToken           = "Invalid token"
	MsgUserAccessDenied       = "User access denied - account flagged"
	MsgRoomIDRequired         = "Room ID is required"
	MsgRoomAccessDenied       = "Access denied to this room"
	MsgNotFound               = "Resource not found"
	MsgInvalidData            = "Invalid data provided"
	MsgUpdatePermissionDenied = "You do not have permission to update this message"
	MsgDeletePermissionDenied = "You do not have permission to delete this message"
	MsgFailedToJoinRoom       = "Failed to join room"
	MsgFailedToLeaveRoom      = "Failed to leave room"
	MsgFailedToListRooms      = "Failed to list rooms"
	MsgFailedToListMessages   = "Failed to list messages"
	MsgFailedToGetMembers     = "Failed to get members"
	MsgFailedToSendMessage    = "Failed to send message"
	MsgFailedToUpdateMessage  = "Failed to update message"
	MsgFailedToDeleteMessage  = "Failed to delete message"
	MsgFailedToAddReaction    = "Failed to add reaction"
	MsgFailedToDeleteReaction = "Failed to delete reaction"
	MsgUnknownEvent           = "Unknown event"
	MsgInternalError          = "Internal server error"
)

// Envelope is the response shape every consumer depends on:
// {status, message, ...data} plus error on failure. Data fields are flattened.
type Envelope struct {
	Status  string
	Message string
	Data    interface{}
	Error   string
}

func Success(message string, data interface{}) Envelope {
	return Envelope{Status: StatusSuccess, Message: message, Data: data}
}

func Failure(message string, err error) Envelope {
	e := Envelope{Status: StatusError, Message: message}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// FailureFor picks the message matching err's kind, or fallback for anything else.
func FailureFor(fallback string, err error) Envelope {
	msg := fallback
	switch {
	case errors.Is(err, ErrAccessDenied):
		msg = MsgRoomAccessDenied
	case errors.Is(err, ErrRoomIDRequired):
		msg = MsgRoomIDRequired
	case errors.Is(err, ErrInvalidData):
		msg = MsgInvalidData
	case errors.Is(err, ErrNotFound):
		msg = MsgNotFound
	case errors.Is(err, ErrPermissionDenied):
		switch fallback {
		case MsgFailedToUpdateMessage:
			msg = MsgUpdatePermissionDenied
		case MsgFailedToDeleteMessage:
			msg = MsgDeletePermissionDenied
		}
	}
	return Failure(msg, err)
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if e.Data != nil {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	put := func(k, v string) {
		b, _ := json.Marshal(v)
		fields[k] = b
	}
	put("status", e.Status)
	put("message", e.Message)
	if e.Error != "" {
		put("error", e.Error)
	}
	return json.Marshal(fields)
}
