package data

import "time"

type RoomType string

const (
	RoomDirectMessage RoomType = "direct_message"
	RoomEvent         RoomType = "event"
)

type Role string

const (
	RoleMember   Role = "member"
	RoleOperator Role = "operator"
)

// Room is the model of rooms table. Direct message rooms take name and cover from the peer member.
type Room struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"type:varchar(255)"`
	Type      RoomType  `gorm:"type:varchar(32);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Room) TableName() string {
	return "rooms"
}

// UserRoom is one membership row. LastMessageID is the read marker, it only moves forward.
type UserRoom struct {
	ID            int64 `gorm:"primaryKey"`
	UserID        int64 `gorm:"not null;uniqueIndex:idx_user_room"`
	RoomID        int64 `gorm:"not null;uniqueIndex:idx_user_room;index"`
	Role          Role  `gorm:"type:varchar(16);not null;default:member"`
	LastMessageID int64 `gorm:"not null;default:0"`
}

func (UserRoom) TableName() string {
	return "user_rooms"
}

type RoomCover struct {
	ID        int64  `gorm:"primaryKey"`
	RoomID    int64  `gorm:"not null;uniqueIndex"`
	UserID    int64  `gorm:"not null"`
	MediaID   int64  `gorm:"not null"`
	FileName  string `gorm:"type:varchar(255)"`
	MediaType string `gorm:"type:varchar(16)"`
}

func (RoomCover) TableName() string {
	return "room_covers"
}
