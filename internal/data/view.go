package data

import (
	"encoding/json"
	"time"
)

// MediaRef points at an object in the media bucket: <kind>/<owner>/<id><file name>.
type MediaRef struct {
	OwnerID  int64
	MediaID  int64
	FileName string
	Kind     string
}

type UserView struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"firstName"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	Photo     *MediaRef `json:"-"`
}

type MediaView struct {
	ID        int64    `json:"id"`
	URI       string   `json:"uri"`
	FileType  string   `json:"fileType"`
	Type      string   `json:"type"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	Ref       MediaRef `json:"-"`
}

// MessageView is the materialized message sent to clients.
type MessageView struct {
	ID              int64           `json:"id"`
	PrevID          json.RawMessage `json:"prevId,omitempty"`
	RoomID          int64           `json:"roomId"`
	Type            MessageType     `json:"type"`
	Value           string          `json:"value"`
	IsEdited        bool            `json:"isEdited"`
	ParentMessageID *int64          `json:"parentMessageId"`
	CreatedAt       time.Time       `json:"createdAt"`
	User            UserView        `json:"user"`
	Mentions        []int64         `json:"mentions"`
	Media           *MediaView      `json:"media"`
	Reactions       map[string]int  `json:"reactions"`
	TotalReactions  int             `json:"totalReactions"`
	Reacted         string          `json:"reacted,omitempty"`
}

type LastMessage struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"userId"`
	Type      MessageType `json:"type"`
	Value     string      `json:"value"`
	CreatedAt time.Time   `json:"createdAt"`
}

// InboxEntry is derived per (user, room), never stored.
type InboxEntry struct {
	RoomID      int64        `json:"roomId"`
	Name        string       `json:"name"`
	Type        RoomType     `json:"type"`
	CoverURL    string       `json:"coverUrl"`
	UnreadCount int64        `json:"unreadCount"`
	LastMessage *LastMessage `json:"lastMessage"`
	Cover       *MediaRef    `json:"-"`
}

type Member struct {
	UserID    int64     `json:"userId"`
	FirstName string    `json:"firstName"`
	Role      Role      `json:"role"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	Photo     *MediaRef `json:"-"`
}

// Summary describes a message for push notifications.
type Summary struct {
	RoomID     int64       `json:"room_id"`
	MessageID  int64       `json:"message_id"`
	AuthorID   int64       `json:"author_id"`
	AuthorName string      `json:"author_name"`
	Type       MessageType `json:"type"`
	Value      string      `json:"value"`
}
