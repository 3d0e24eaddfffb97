package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/pelusa-v/roomchat/internal/data"
)

const (
	defaultFanoutPage    = 100
	defaultFanoutWorkers = 8
)

// Fanout pushes a room change to every member's inbox: live for online members,
// one notification batch for offline ones.
type Fanout struct {
	store    Store
	registry Registry
	channel  *Channel
	media    MediaResolver
	notifier Notifier
	pageSize int
	workers  int
}

type FanoutOptions struct {
	PageSize int
	Workers  int
}

func NewFanout(store Store, registry Registry, channel *Channel, media MediaResolver, notifier Notifier, opts FanoutOptions) *Fanout {
	if media == nil {
		media = noMedia{}
	}
	if notifier == nil {
		notifier = noNotify{}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultFanoutPage
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultFanoutWorkers
	}
	return &Fanout{
		store:    store,
		registry: registry,
		channel:  channel,
		media:    media,
		notifier: notifier,
		pageSize: opts.PageSize,
		workers:  opts.Workers,
	}
}

// FanoutResult lists who got a live update and who was queued for notification.
type FanoutResult struct {
	Live    []int64
	Offline []int64
	Pages   int // non-empty membership pages
}

// Propagate walks the room's membership page by page. Members of one page run
// concurrently, pages run in sequence. When changedMessageID is set, online members
// viewing the room have it marked read. A member that fails is logged and skipped.
func (f *Fanout) Propagate(ctx context.Context, roomID, changedMessageID int64, notifyOffline bool, summary *data.Summary) (FanoutResult, error) {
	var (
		res     FanoutResult
		mu      sync.Mutex
		afterID int64
	)
	for {
		rows, err := f.store.MembershipPage(ctx, roomID, afterID, f.pageSize)
		if err != nil {
			return res, fmt.Errorf("%w: membership page after %d: %v", ErrPersistence, afterID, err)
		}
		if len(rows) == 0 {
			break
		}
		res.Pages++

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(f.workers)
		for _, row := range rows {
			userID := row.UserID
			g.Go(func() error {
				online, err := f.member(gctx, roomID, userID, changedMessageID)
				if err != nil {
					log.Warn().Err(err).Int64("room_id", roomID).Int64("user_id", userID).Msg("inbox update skipped")
					return nil
				}
				mu.Lock()
				if online {
					res.Live = append(res.Live, userID)
				} else {
					res.Offline = append(res.Offline, userID)
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		afterID = rows[len(rows)-1].ID
		if len(rows) < f.pageSize {
			break
		}
	}

	if notifyOffline && summary != nil && len(res.Offline) > 0 {
		f.notifier.Notify(ctx, res.Offline, *summary)
	}
	return res, nil
}

// member delivers one inbox update and reports whether the user was online.
func (f *Fanout) member(ctx context.Context, roomID, userID, changedMessageID int64) (bool, error) {
	entry, err := f.store.InboxEntry(ctx, userID, roomID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, fmt.Errorf("%w: no inbox entry", ErrNotFound)
	}

	p := f.registry.GetPresence(ctx, userID)
	if !p.IsOnline {
		return false, nil
	}
	// 正在看这个房间：直接标记已读
	if changedMessageID != 0 && p.RoomID == roomID {
		if err := f.store.UpdateLastRead(ctx, userID, roomID, changedMessageID); err != nil {
			log.Warn().Err(err).Int64("room_id", roomID).Int64("user_id", userID).Msg("last read not updated")
		}
		entry.UnreadCount = 0
	}
	if entry.Cover != nil {
		entry.CoverURL = f.media.CoverURL(ctx, *entry.Cover)
	}
	f.channel.SendToUser(ctx, userID, EventUpdateInbox, Success(MsgInboxUpdated, entry))
	return true, nil
}
