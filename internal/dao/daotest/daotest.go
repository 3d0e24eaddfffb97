// Package daotest opens throwaway in-memory stores for tests.
package daotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pelusa-v/roomchat/internal/dao"
	"github.com/pelusa-v/roomchat/internal/data"
)

// Fixture is a migrated store plus the raw handle for seeding rows.
type Fixture struct {
	Store *dao.Store
	DB    *gorm.DB
	t     testing.TB
}

func New(t testing.TB) *Fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := dao.New(db)
	require.NoError(t, store.Migrate(context.Background()))
	return &Fixture{Store: store, DB: db, t: t}
}

func (f *Fixture) User(id int64, firstName string) *data.User {
	u := &data.User{ID: id, FirstName: firstName}
	require.NoError(f.t, f.DB.Create(u).Error)
	return u
}

func (f *Fixture) FlaggedUser(id int64, firstName string) *data.User {
	u := f.User(id, firstName)
	require.NoError(f.t, f.DB.Model(u).Update("flagged", true).Error)
	return u
}

func (f *Fixture) Room(id int64, name string, tp data.RoomType) *data.Room {
	r := &data.Room{ID: id, Name: name, Type: tp, CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(f.t, f.DB.Create(r).Error)
	return r
}

func (f *Fixture) Member(roomID, userID int64, role data.Role) *data.UserRoom {
	ur := &data.UserRoom{RoomID: roomID, UserID: userID, Role: role}
	require.NoError(f.t, f.DB.Create(ur).Error)
	return ur
}

// Message inserts a message at the given time.
func (f *Fixture) Message(roomID, userID int64, tp data.MessageType, value string, at time.Time) *data.Message {
	m := &data.Message{RoomID: roomID, UserID: userID, Type: tp, Value: value, CreatedAt: at}
	require.NoError(f.t, f.DB.Create(m).Error)
	return m
}

func (f *Fixture) Photo(userID int64, fileName string) *data.UserPhoto {
	p := &data.UserPhoto{UserID: userID, FileName: fileName, PhotoType: data.PhotoProfile}
	require.NoError(f.t, f.DB.Create(p).Error)
	return p
}

func (f *Fixture) Token(userID int64, token string) *data.DeviceToken {
	d := &data.DeviceToken{UserID: userID, Token: token}
	require.NoError(f.t, f.DB.Create(d).Error)
	return d
}
