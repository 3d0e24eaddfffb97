package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog/log"

	"github.com/pelusa-v/roomchat/internal/data"
)

const pushMaxAttempts = 3

// PushArgs is the River job carrying one message's offline recipients.
type PushArgs struct {
	UserIDs []int64      `json:"user_ids"`
	Summary data.Summary `json:"summary"`
}

func (PushArgs) Kind() string {
	return "push_notification"
}

func (PushArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: pushMaxAttempts}
}

type PushWorker struct {
	river.WorkerDefaults[PushArgs]
	deliverer *Deliverer
}

func (w *PushWorker) Work(ctx context.Context, job *river.Job[PushArgs]) error {
	n, err := w.deliverer.Deliver(ctx, job.Args.UserIDs, job.Args.Summary)
	if err != nil {
		return err
	}
	log.Debug().Int64("job_id", job.ID).Int("tokens", n).Msg("push job done")
	return nil
}

type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// QueueNotifier enqueues a push job per message.
type QueueNotifier struct {
	client  Inserter
	timeout time.Duration
}

func NewQueueNotifier(client Inserter, timeout time.Duration) *QueueNotifier {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &QueueNotifier{client: client, timeout: timeout}
}

func (n *QueueNotifier) Notify(ctx context.Context, userIDs []int64, summary data.Summary) {
	if len(userIDs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	args := PushArgs{UserIDs: append([]int64(nil), userIDs...), Summary: summary}
	if _, err := n.client.Insert(ctx, args, nil); err != nil {
		log.Error().Err(err).Int64("room_id", summary.RoomID).Int("users", len(userIDs)).Msg("push job not queued")
	}
}

// Queue owns the River client that runs push jobs.
type Queue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
}

func NewQueue(ctx context.Context, databaseURL string, d *Deliverer, workers int) (*Queue, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if workers <= 0 {
		workers = 10
	}
	w := river.NewWorkers()
	river.AddWorker(w, &PushWorker{deliverer: d})
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: workers}},
		Workers: w,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	return &Queue{client: client, pool: pool}, nil
}

func (q *Queue) Notifier(timeout time.Duration) *QueueNotifier {
	return NewQueueNotifier(q.client, timeout)
}

func (q *Queue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

func (q *Queue) Stop(ctx context.Context) error {
	err := q.client.Stop(ctx)
	q.pool.Close()
	return err
}

// Migrate installs or upgrades the River schema.
func Migrate(ctx context.Context, databaseURL string) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()
	m, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	res, err := m.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate: %w", err)
	}
	for _, v := range res.Versions {
		log.Info().Int("version", v.Version).Msg("river migration applied")
	}
	return nil
}
