package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pelusa-v/roomchat/internal/data"
)

func (s *Store) GetUser(ctx context.Context, id int64) (*data.User, error) {
	user := &data.User{}
	tx := s.conn(ctx).Where("id = ?", id).First(user)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, tx.Error
	}
	return user, nil
}

// ProfilePhotos returns the profile photo reference of each user that has one.
func (s *Store) ProfilePhotos(ctx context.Context, userIDs []int64) (map[int64]*data.MediaRef, error) {
	out := make(map[int64]*data.MediaRef, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	photos := make([]data.UserPhoto, 0)
	tx := s.conn(ctx).Where("user_id IN ? AND photo_type = ?", userIDs, data.PhotoProfile).
		Order("id").Find(&photos)
	if tx.Error != nil {
		return nil, tx.Error
	}
	for _, p := range photos {
		if _, ok := out[p.UserID]; ok {
			continue
		}
		out[p.UserID] = &data.MediaRef{OwnerID: p.UserID, MediaID: p.ID, FileName: p.FileName, Kind: "photo"}
	}
	return out, nil
}

// UserViews loads author profiles keyed by user id.
func (s *Store) UserViews(ctx context.Context, userIDs []int64) (map[int64]data.UserView, error) {
	out := make(map[int64]data.UserView, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	users := make([]data.User, 0, len(userIDs))
	if tx := s.conn(ctx).Where("id IN ?", userIDs).Find(&users); tx.Error != nil {
		return nil, tx.Error
	}
	photos, err := s.ProfilePhotos(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = data.UserView{ID: u.ID, FirstName: u.FirstName, Photo: photos[u.ID]}
	}
	return out, nil
}

// DeviceTokens pages the push tokens of the given users ordered by token row id.
func (s *Store) DeviceTokens(ctx context.Context, userIDs []int64, afterID int64, limit int) ([]data.DeviceToken, error) {
	tokens := make([]data.DeviceToken, 0, limit)
	if len(userIDs) == 0 {
		return tokens, nil
	}
	tx := s.conn(ctx).Where("user_id IN ? AND id > ?", userIDs, afterID).
		Order("id").Limit(limit).Find(&tokens)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tokens, nil
}

func (s *Store) DeleteDeviceTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return s.conn(ctx).Where("device_token IN ?", tokens).Delete(&data.DeviceToken{}).Error
}
