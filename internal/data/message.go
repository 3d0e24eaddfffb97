package data

import "time"

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
)

// Message is the model of messages table.
type Message struct {
	ID              int64       `gorm:"primaryKey"`
	RoomID          int64       `gorm:"not null;index:idx_room_created,priority:1"`
	UserID          int64       `gorm:"not null"`
	Type            MessageType `gorm:"type:varchar(16);not null"`
	Value           string      `gorm:"type:text"`
	ParentMessageID *int64
	IsEdited        bool      `gorm:"not null;default:false"`
	CreatedAt       time.Time `gorm:"index:idx_room_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}

type MessageMention struct {
	ID        int64 `gorm:"primaryKey"`
	MessageID int64 `gorm:"not null;index"`
	UserID    int64 `gorm:"not null"`
}

func (MessageMention) TableName() string {
	return "message_mentions"
}

// Media is an uploaded object attached to a message. Type is the storage folder kind (photo, video).
type Media struct {
	ID        int64  `gorm:"primaryKey"`
	MessageID int64  `gorm:"not null;index"`
	UserID    int64  `gorm:"not null"`
	FileType  string `gorm:"type:varchar(64)"`
	Type      string `gorm:"type:varchar(16)"`
	FileName  string `gorm:"type:varchar(255)"`
	Thumbnail string `gorm:"type:varchar(255)"`
}

func (Media) TableName() string {
	return "media"
}

// MessageReaction holds one reaction per (message, user).
type MessageReaction struct {
	ID        int64     `gorm:"primaryKey"`
	MessageID int64     `gorm:"not null;uniqueIndex:idx_reaction_message_user"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_reaction_message_user"`
	Value     string    `gorm:"type:varchar(32);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (MessageReaction) TableName() string {
	return "message_reactions"
}

// Models lists every table for migration.
func Models() []interface{} {
	return []interface{}{
		&User{}, &UserPhoto{}, &DeviceToken{},
		&Room{}, &RoomCover{}, &UserRoom{},
		&Message{}, &MessageMention{}, &Media{}, &MessageReaction{},
	}
}
