package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pelusa-v/roomchat/internal/data"
)

func (s *Store) GetMessage(ctx context.Context, id int64) (*data.Message, error) {
	msg := &data.Message{}
	tx := s.conn(ctx).Where("id = ?", id).First(msg)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, tx.Error
	}
	return msg, nil
}

// latestMessageID returns the room's latest message by creation time, 0 when empty.
func (s *Store) latestMessageID(ctx context.Context, roomID int64) (int64, error) {
	ids := make([]int64, 0, 1)
	tx := s.conn(ctx).Model(&data.Message{}).Where("room_id = ?", roomID).
		Order("created_at DESC").Order("id DESC").Limit(1).Pluck("id", &ids)
	if tx.Error != nil {
		return 0, tx.Error
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

func mentionRows(messageID int64, userIDs []int64) []data.MessageMention {
	rows := make([]data.MessageMention, 0, len(userIDs))
	seen := make(map[int64]bool, len(userIDs))
	for _, uid := range userIDs {
		if seen[uid] {
			continue
		}
		seen[uid] = true
		rows = append(rows, data.MessageMention{MessageID: messageID, UserID: uid})
	}
	return rows
}

// InsertMessage writes the message with its mentions and media in one transaction.
func (s *Store) InsertMessage(ctx context.Context, msg *data.Message, mentions []int64, media *data.Media) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		if err := db.Create(msg).Error; err != nil {
			return err
		}
		if rows := mentionRows(msg.ID, mentions); len(rows) > 0 {
			if err := db.Create(&rows).Error; err != nil {
				return err
			}
		}
		if media != nil {
			media.MessageID = msg.ID
			if media.UserID == 0 {
				media.UserID = msg.UserID
			}
			if err := db.Create(media).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateMessage replaces the value and mentions. wasLast reports whether the message
// was the room's latest at commit time.
func (s *Store) UpdateMessage(ctx context.Context, id int64, value string, mentions []int64) (wasLast bool, err error) {
	err = s.Transaction(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		msg, err := s.GetMessage(ctx, id)
		if err != nil {
			return err
		}
		if msg == nil {
			return gorm.ErrRecordNotFound
		}
		latest, err := s.latestMessageID(ctx, msg.RoomID)
		if err != nil {
			return err
		}
		wasLast = latest == msg.ID

		tx := db.Model(&data.Message{}).Where("id = ?", id).
			Updates(map[string]interface{}{"value": value, "is_edited": true})
		if tx.Error != nil {
			return tx.Error
		}
		if err := db.Where("message_id = ?", id).Delete(&data.MessageMention{}).Error; err != nil {
			return err
		}
		if rows := mentionRows(id, mentions); len(rows) > 0 {
			return db.Create(&rows).Error
		}
		return nil
	})
	return wasLast, err
}

// DeleteMessage removes the message with its mentions, media and reactions.
func (s *Store) DeleteMessage(ctx context.Context, id int64) (wasLast bool, err error) {
	err = s.Transaction(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		msg, err := s.GetMessage(ctx, id)
		if err != nil {
			return err
		}
		if msg == nil {
			return gorm.ErrRecordNotFound
		}
		latest, err := s.latestMessageID(ctx, msg.RoomID)
		if err != nil {
			return err
		}
		wasLast = latest == msg.ID

		for _, m := range []interface{}{&data.MessageReaction{}, &data.MessageMention{}, &data.Media{}} {
			if err := db.Where("message_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return db.Where("id = ?", id).Delete(&data.Message{}).Error
	})
	return wasLast, err
}

// AddReaction upserts the user's single reaction on a message and returns the
// value it replaced, "" when the user had none.
func (s *Store) AddReaction(ctx context.Context, messageID, userID int64, value string) (string, error) {
	var previous string
	err := s.Transaction(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		var prev data.MessageReaction
		tx := db.Where("message_id = ? AND user_id = ?", messageID, userID).Limit(1).Find(&prev)
		if tx.Error != nil {
			return tx.Error
		}
		if tx.RowsAffected > 0 {
			previous = prev.Value
		}
		r := &data.MessageReaction{MessageID: messageID, UserID: userID, Value: value}
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(r).Error
	})
	return previous, err
}

// DeleteReaction removes the reaction only when its value matches.
func (s *Store) DeleteReaction(ctx context.Context, messageID, userID int64, value string) (bool, error) {
	tx := s.conn(ctx).Where("message_id = ? AND user_id = ? AND value = ?", messageID, userID, value).
		Delete(&data.MessageReaction{})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (s *Store) MessageView(ctx context.Context, id, viewerID int64) (*data.MessageView, error) {
	msg, err := s.GetMessage(ctx, id)
	if err != nil || msg == nil {
		return nil, err
	}
	views, err := s.hydrate(ctx, []data.Message{*msg}, viewerID)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// ListMessages pages a room newest first.
func (s *Store) ListMessages(ctx context.Context, roomID, viewerID int64, offset, limit int) ([]*data.MessageView, error) {
	msgs := make([]data.Message, 0, limit)
	tx := s.conn(ctx).Where("room_id = ?", roomID).
		Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&msgs)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return s.hydrate(ctx, msgs, viewerID)
}

// hydrate attaches authors, mentions, media and reaction counts.
func (s *Store) hydrate(ctx context.Context, msgs []data.Message, viewerID int64) ([]*data.MessageView, error) {
	out := make([]*data.MessageView, 0, len(msgs))
	if len(msgs) == 0 {
		return out, nil
	}
	ids := make([]int64, 0, len(msgs))
	authors := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
		authors = append(authors, m.UserID)
	}
	db := s.conn(ctx)

	users, err := s.UserViews(ctx, authors)
	if err != nil {
		return nil, err
	}
	mentions := make([]data.MessageMention, 0)
	if err := db.Where("message_id IN ?", ids).Order("id").Find(&mentions).Error; err != nil {
		return nil, err
	}
	media := make([]data.Media, 0)
	if err := db.Where("message_id IN ?", ids).Order("id").Find(&media).Error; err != nil {
		return nil, err
	}
	reactions := make([]data.MessageReaction, 0)
	if err := db.Where("message_id IN ?", ids).Find(&reactions).Error; err != nil {
		return nil, err
	}

	byID := make(map[int64]*data.MessageView, len(msgs))
	for _, m := range msgs {
		v := &data.MessageView{
			ID:              m.ID,
			RoomID:          m.RoomID,
			Type:            m.Type,
			Value:           m.Value,
			IsEdited:        m.IsEdited,
			ParentMessageID: m.ParentMessageID,
			CreatedAt:       m.CreatedAt,
			User:            users[m.UserID],
			Mentions:        []int64{},
			Reactions:       map[string]int{},
		}
		if v.User.ID == 0 {
			v.User.ID = m.UserID
		}
		byID[m.ID] = v
		out = append(out, v)
	}
	for _, mm := range mentions {
		byID[mm.MessageID].Mentions = append(byID[mm.MessageID].Mentions, mm.UserID)
	}
	for _, md := range media {
		v := byID[md.MessageID]
		if v.Media != nil {
			continue
		}
		v.Media = &data.MediaView{
			ID:        md.ID,
			FileType:  md.FileType,
			Type:      md.Type,
			Thumbnail: md.Thumbnail,
			Ref:       data.MediaRef{OwnerID: md.UserID, MediaID: md.ID, FileName: md.FileName, Kind: md.Type},
		}
	}
	for _, r := range reactions {
		v := byID[r.MessageID]
		v.Reactions[r.Value]++
		v.TotalReactions++
		if r.UserID == viewerID {
			v.Reacted = r.Value
		}
	}
	return out, nil
}
