package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pelusa-v/roomchat/internal/data"
)

// DirectNotifier delivers in a detached goroutine.
type DirectNotifier struct {
	deliverer *Deliverer
	timeout   time.Duration
	done      func() // tests
}

func NewDirectNotifier(d *Deliverer, timeout time.Duration) *DirectNotifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DirectNotifier{deliverer: d, timeout: timeout}
}

func (n *DirectNotifier) Notify(ctx context.Context, userIDs []int64, summary data.Summary) {
	if len(userIDs) == 0 {
		return
	}
	ids := append([]int64(nil), userIDs...)
	go func() {
		if n.done != nil {
			defer n.done()
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if _, err := n.deliverer.Deliver(ctx, ids, summary); err != nil {
			log.Error().Err(err).Int64("room_id", summary.RoomID).Msg("push delivery failed")
		}
	}()
}
