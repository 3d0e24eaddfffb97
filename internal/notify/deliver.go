package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pelusa-v/roomchat/internal/data"
)

const defaultBatch = 100

// Pusher sends one message to a batch of device tokens and reports the tokens
// the provider no longer knows.
type Pusher interface {
	Push(ctx context.Context, tokens []string, msg Message) (unregistered []string, err error)
}

type TokenStore interface {
	DeviceTokens(ctx context.Context, userIDs []int64, afterID int64, limit int) ([]data.DeviceToken, error)
	DeleteDeviceTokens(ctx context.Context, tokens []string) error
}

// Deliverer walks the recipients' device tokens in batches.
type Deliverer struct {
	store  TokenStore
	pusher Pusher
	batch  int
}

func NewDeliverer(store TokenStore, pusher Pusher, batch int) *Deliverer {
	if batch <= 0 {
		batch = defaultBatch
	}
	return &Deliverer{store: store, pusher: pusher, batch: batch}
}

// Deliver pushes summary to every device of userIDs and returns the number of
// tokens attempted. A failed batch is logged and the walk goes on; only token
// lookup errors abort.
func (d *Deliverer) Deliver(ctx context.Context, userIDs []int64, summary data.Summary) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	msg := Compose(summary)
	var afterID int64
	sent := 0
	for {
		rows, err := d.store.DeviceTokens(ctx, userIDs, afterID, d.batch)
		if err != nil {
			return sent, fmt.Errorf("device tokens: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		tokens := make([]string, len(rows))
		for i, r := range rows {
			tokens[i] = r.Token
		}
		afterID = rows[len(rows)-1].ID
		sent += len(tokens)

		gone, err := d.pusher.Push(ctx, tokens, msg)
		if err != nil {
			log.Error().Err(err).Int64("room_id", summary.RoomID).Int("tokens", len(tokens)).Msg("push batch failed")
		}
		if len(gone) > 0 {
			if err := d.store.DeleteDeviceTokens(ctx, gone); err != nil {
				log.Warn().Err(err).Int("tokens", len(gone)).Msg("unregistered tokens not removed")
			} else {
				log.Info().Int("tokens", len(gone)).Msg("removed unregistered tokens")
			}
		}
		if len(rows) < d.batch {
			break
		}
	}
	return sent, nil
}
