package data

// PhotoProfile marks the profile photo among a user's photos.
const PhotoProfile = 1

type User struct {
	ID         int64  `gorm:"primaryKey"`
	FirstName  string `gorm:"type:varchar(128)"`
	PublicUser bool   `gorm:"not null;default:false"`
	Flagged    bool   `gorm:"not null;default:false"`
}

func (User) TableName() string {
	return "users"
}

type UserPhoto struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"not null;index"`
	FileName  string `gorm:"type:varchar(255)"`
	PhotoType int    `gorm:"not null"`
}

func (UserPhoto) TableName() string {
	return "user_photos"
}

type DeviceToken struct {
	ID     int64  `gorm:"primaryKey"`
	UserID int64  `gorm:"not null;index"`
	Token  string `gorm:"column:device_token;type:varchar(512);not null;uniqueIndex"`
}

func (DeviceToken) TableName() string {
	return "user_device_tokens"
}
