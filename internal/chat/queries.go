package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pelusa-v/roomchat/internal/data"
)

const defaultPageLimit = 10

// Queries serves the read side: room list, message history and members.
type Queries struct {
	store Store
	media MediaResolver
	limit int
}

func NewQueries(store Store, media MediaResolver, pageLimit int) *Queries {
	if media == nil {
		media = noMedia{}
	}
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	return &Queries{store: store, media: media, limit: pageLimit}
}

func (q *Queries) offset(page int) int {
	if page < 0 {
		page = 0
	}
	return page * q.limit
}

// Rooms lists the inbox of userID.
func (q *Queries) Rooms(ctx context.Context, userID int64, req PageRequest) ([]*data.InboxEntry, error) {
	rooms, err := q.store.ListRooms(ctx, userID, req.SearchQuery, q.offset(req.Page), q.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	for _, r := range rooms {
		if r.Cover != nil {
			r.CoverURL = q.media.CoverURL(ctx, *r.Cover)
		}
	}
	return rooms, nil
}

// Messages pages the room history newest first. Reading the first page marks the room read.
func (q *Queries) Messages(ctx context.Context, userID int64, req PageRequest) ([]*data.MessageView, error) {
	if err := requireRoomID(req.RoomID); err != nil {
		return nil, err
	}
	if err := q.access(ctx, userID, req.RoomID); err != nil {
		return nil, err
	}
	msgs, err := q.store.ListMessages(ctx, req.RoomID, userID, q.offset(req.Page), q.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	for _, v := range msgs {
		resolveView(ctx, q.media, v)
	}
	if req.Page <= 0 && len(msgs) > 0 {
		if err := q.store.UpdateLastRead(ctx, userID, req.RoomID, msgs[0].ID); err != nil {
			log.Warn().Err(err).Int64("room_id", req.RoomID).Int64("user_id", userID).Msg("last read not updated")
		}
	}
	return msgs, nil
}

func (q *Queries) Members(ctx context.Context, userID int64, req PageRequest) ([]*data.Member, error) {
	if err := requireRoomID(req.RoomID); err != nil {
		return nil, err
	}
	if err := q.access(ctx, userID, req.RoomID); err != nil {
		return nil, err
	}
	members, err := q.store.ListMembers(ctx, req.RoomID, req.SearchQuery, q.offset(req.Page), q.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	for _, m := range members {
		if m.Photo != nil {
			m.PhotoURL = q.media.CoverURL(ctx, *m.Photo)
		}
	}
	return members, nil
}

// MarkRead moves the user's read marker in a room.
func (q *Queries) MarkRead(ctx context.Context, userID, roomID, messageID int64) error {
	if err := validateRequest(&ReadRequest{RoomID: roomID, MessageID: messageID}); err != nil {
		return err
	}
	if err := q.access(ctx, userID, roomID); err != nil {
		return err
	}
	if err := q.store.UpdateLastRead(ctx, userID, roomID, messageID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (q *Queries) access(ctx context.Context, userID, roomID int64) error {
	ok, err := q.store.HasAccess(ctx, userID, roomID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return fmt.Errorf("%w: room %d", ErrAccessDenied, roomID)
	}
	return nil
}
