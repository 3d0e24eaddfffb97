package chat

import (
	"context"

	"github.com/pelusa-v/roomchat/internal/data"
)

// Store is the persistence the core needs. Lookups return nil, nil when the row is missing.
type Store interface {
	GetRoom(ctx context.Context, id int64) (*data.Room, error)
	GetMessage(ctx context.Context, id int64) (*data.Message, error)
	HasAccess(ctx context.Context, userID, roomID int64) (bool, error)
	IsOperator(ctx context.Context, userID, roomID int64) (bool, error)

	InsertMessage(ctx context.Context, msg *data.Message, mentions []int64, media *data.Media) error
	UpdateMessage(ctx context.Context, id int64, value string, mentions []int64) (wasLast bool, err error)
	DeleteMessage(ctx context.Context, id int64) (wasLast bool, err error)
	AddReaction(ctx context.Context, messageID, userID int64, value string) (string, error)
	DeleteReaction(ctx context.Context, messageID, userID int64, value string) (bool, error)
	MessageView(ctx context.Context, id, viewerID int64) (*data.MessageView, error)
	ListMessages(ctx context.Context, roomID, viewerID int64, offset, limit int) ([]*data.MessageView, error)

	MembershipPage(ctx context.Context, roomID, afterID int64, limit int) ([]data.UserRoom, error)
	InboxEntry(ctx context.Context, userID, roomID int64) (*data.InboxEntry, error)
	UpdateLastRead(ctx context.Context, userID, roomID, messageID int64) error
	ListRooms(ctx context.Context, userID int64, search string, offset, limit int) ([]*data.InboxEntry, error)
	ListMembers(ctx context.Context, roomID int64, search string, offset, limit int) ([]*data.Member, error)
}

// MediaResolver turns media references into displayable URLs; "" means no URL.
type MediaResolver interface {
	MediaURL(ctx context.Context, ref data.MediaRef) string
	CoverURL(ctx context.Context, ref data.MediaRef) string
}

// Notifier hands offline recipients to push delivery. It must not block.
type Notifier interface {
	Notify(ctx context.Context, userIDs []int64, summary data.Summary)
}

type noMedia struct{}

func (noMedia) MediaURL(context.Context, data.MediaRef) string { return "" }
func (noMedia) CoverURL(context.Context, data.MediaRef) string { return "" }

type noNotify struct{}

func (noNotify) Notify(context.Context, []int64, data.Summary) {}

func resolveView(ctx context.Context, media MediaResolver, v *data.MessageView) {
	if v.Media != nil {
		v.Media.URI = media.MediaURL(ctx, v.Media.Ref)
	}
	if v.User.Photo != nil {
		v.User.PhotoURL = media.CoverURL(ctx, *v.User.Photo)
	}
}
