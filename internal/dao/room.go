package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pelusa-v/roomchat/internal/data"
)

func (s *Store) GetRoom(ctx context.Context, id int64) (*data.Room, error) {
	room := &data.Room{}
	tx := s.conn(ctx).Where("id = ?", id).First(room)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, tx.Error
	}
	return room, nil
}

func (s *Store) Membership(ctx context.Context, userID, roomID int64) (*data.UserRoom, error) {
	ur := &data.UserRoom{}
	tx := s.conn(ctx).Where("user_id = ? AND room_id = ?", userID, roomID).First(ur)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, tx.Error
	}
	return ur, nil
}

func (s *Store) HasAccess(ctx context.Context, userID, roomID int64) (bool, error) {
	ur, err := s.Membership(ctx, userID, roomID)
	if err != nil {
		return false, err
	}
	return ur != nil, nil
}

func (s *Store) IsOperator(ctx context.Context, userID, roomID int64) (bool, error) {
	ur, err := s.Membership(ctx, userID, roomID)
	if err != nil {
		return false, err
	}
	return ur != nil && ur.Role == data.RoleOperator, nil
}

// MembershipPage returns up to limit membership rows of the room with id > afterID, ordered by id.
func (s *Store) MembershipPage(ctx context.Context, roomID, afterID int64, limit int) ([]data.UserRoom, error) {
	rows := make([]data.UserRoom, 0, limit)
	tx := s.conn(ctx).Where("room_id = ? AND id > ?", roomID, afterID).
		Order("id").Limit(limit).Find(&rows)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return rows, nil
}

// UpdateLastRead moves the read marker forward, never back.
func (s *Store) UpdateLastRead(ctx context.Context, userID, roomID, messageID int64) error {
	return s.conn(ctx).Model(&data.UserRoom{}).
		Where("user_id = ? AND room_id = ? AND last_message_id < ?", userID, roomID, messageID).
		Update("last_message_id", messageID).Error
}

// InboxEntry derives the inbox row of userID for roomID. Returns nil when the user is not a member.
func (s *Store) InboxEntry(ctx context.Context, userID, roomID int64) (*data.InboxEntry, error) {
	ur, err := s.Membership(ctx, userID, roomID)
	if err != nil || ur == nil {
		return nil, err
	}
	room, err := s.GetRoom(ctx, roomID)
	if err != nil || room == nil {
		return nil, err
	}

	entry := &data.InboxEntry{RoomID: room.ID, Name: room.Name, Type: room.Type}

	last := &data.Message{}
	tx := s.conn(ctx).Where("room_id = ?", roomID).Order("created_at DESC").Order("id DESC").Limit(1).Find(last)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected > 0 {
		entry.LastMessage = &data.LastMessage{
			ID: last.ID, UserID: last.UserID, Type: last.Type, Value: last.Value, CreatedAt: last.CreatedAt,
		}
	}

	tx = s.conn(ctx).Model(&data.Message{}).
		Where("room_id = ? AND id > ?", roomID, ur.LastMessageID).Count(&entry.UnreadCount)
	if tx.Error != nil {
		return nil, tx.Error
	}

	if room.Type == data.RoomDirectMessage {
		if err := s.fillPeer(ctx, entry, userID); err != nil {
			return nil, err
		}
		return entry, nil
	}

	cover := &data.RoomCover{}
	tx = s.conn(ctx).Where("room_id = ?", roomID).Limit(1).Find(cover)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected > 0 {
		entry.Cover = &data.MediaRef{OwnerID: cover.UserID, MediaID: cover.MediaID, FileName: cover.FileName, Kind: cover.MediaType}
	}
	return entry, nil
}

// 私聊：名称与头像取对方成员
func (s *Store) fillPeer(ctx context.Context, entry *data.InboxEntry, userID int64) error {
	peer := &data.User{}
	tx := s.conn(ctx).Table("user_rooms AS ur").Select("u.*").
		Joins("JOIN users u ON u.id = ur.user_id").
		Where("ur.room_id = ? AND ur.user_id <> ?", entry.RoomID, userID).
		Order("ur.id").Limit(1).Find(peer)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil
	}
	entry.Name = peer.FirstName
	photos, err := s.ProfilePhotos(ctx, []int64{peer.ID})
	if err != nil {
		return err
	}
	entry.Cover = photos[peer.ID]
	return nil
}

// ListRooms pages the user's rooms ordered by latest activity. search matches the event name or the peer's first name.
func (s *Store) ListRooms(ctx context.Context, userID int64, search string, offset, limit int) ([]*data.InboxEntry, error) {
	q := s.conn(ctx).Table("user_rooms AS ur").
		Joins("JOIN rooms r ON r.id = ur.room_id").
		Joins("LEFT JOIN (SELECT room_id, MAX(created_at) AS last_at FROM messages GROUP BY room_id) m ON m.room_id = ur.room_id").
		Where("ur.user_id = ?", userID)
	if search != "" {
		like := search + "%"
		q = q.Where("((r.type = ? AND r.name LIKE ?) OR (r.type = ? AND EXISTS ("+
			"SELECT 1 FROM user_rooms p JOIN users u ON u.id = p.user_id "+
			"WHERE p.room_id = ur.room_id AND p.user_id <> ? AND u.first_name LIKE ?)))",
			data.RoomEvent, like, data.RoomDirectMessage, userID, like)
	}
	ids := make([]int64, 0, limit)
	tx := q.Order("COALESCE(m.last_at, r.created_at) DESC").Order("ur.room_id DESC").
		Offset(offset).Limit(limit).Pluck("ur.room_id", &ids)
	if tx.Error != nil {
		return nil, tx.Error
	}

	out := make([]*data.InboxEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := s.InboxEntry(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			out = append(out, entry)
		}
	}
	return out, nil
}

// ListMembers pages unflagged room members ordered by first name.
func (s *Store) ListMembers(ctx context.Context, roomID int64, search string, offset, limit int) ([]*data.Member, error) {
	type row struct {
		UserID    int64
		FirstName string
		Role      data.Role
	}
	q := s.conn(ctx).Table("user_rooms AS ur").
		Select("ur.user_id AS user_id, u.first_name AS first_name, ur.role AS role").
		Joins("JOIN users u ON u.id = ur.user_id").
		Where("ur.room_id = ? AND u.flagged = ?", roomID, false)
	if search != "" {
		q = q.Where("u.first_name LIKE ?", search+"%")
	}
	rows := make([]row, 0, limit)
	if tx := q.Order("u.first_name").Order("ur.user_id").Offset(offset).Limit(limit).Scan(&rows); tx.Error != nil {
		return nil, tx.Error
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	photos, err := s.ProfilePhotos(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*data.Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, &data.Member{UserID: r.UserID, FirstName: r.FirstName, Role: r.Role, Photo: photos[r.UserID]})
	}
	return out, nil
}
