package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/roomchat/internal/dao/daotest"
	"github.com/pelusa-v/roomchat/internal/data"
)

// recordingBus is a LocalBackplane that remembers every published event.
type recordingBus struct {
	*LocalBackplane
	mu     sync.Mutex
	events []published
}

type published struct {
	Topic string
	Event string
	Data  map[string]interface{}
}

func (b *recordingBus) Publish(ctx context.Context, topic string, payload []byte) error {
	var f struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	_ = json.Unmarshal(payload, &f)
	b.mu.Lock()
	b.events = append(b.events, published{Topic: topic, Event: f.Event, Data: f.Data})
	b.mu.Unlock()
	return b.LocalBackplane.Publish(ctx, topic, payload)
}

func (b *recordingBus) count(topic, event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if (topic == "" || e.Topic == topic) && e.Event == event {
			n++
		}
	}
	return n
}

func (b *recordingBus) find(topic, event string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []published{}
	for _, e := range b.events {
		if e.Topic == topic && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type notification struct {
	UserIDs []int64
	Summary data.Summary
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (n *recordingNotifier) Notify(_ context.Context, userIDs []int64, summary data.Summary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{UserIDs: append([]int64(nil), userIDs...), Summary: summary})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.calls...)
}

type harness struct {
	f        *daotest.Fixture
	mr       *miniredis.Miniredis
	registry *RedisRegistry
	bus      *recordingBus
	notifier *recordingNotifier
	mgr      *Manager
	ctx      context.Context
}

func newHarness(t *testing.T, opts FanoutOptions) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		f:        daotest.New(t),
		mr:       mr,
		registry: NewRedisRegistry(rdb, RegistryOptions{Timeout: time.Second}),
		bus:      &recordingBus{LocalBackplane: NewLocalBackplane()},
		notifier: &recordingNotifier{},
		ctx:      ctx,
	}
	h.mgr = NewManager(Deps{
		Store:     h.f.Store,
		Registry:  h.registry,
		Backplane: h.bus,
		Notifier:  h.notifier,
		Fanout:    opts,
	})
	require.NoError(t, h.mgr.Start(ctx))
	return h
}

// connect registers a session and consumes its connected frame.
func (h *harness) connect(t *testing.T, sessionID string, userID int64) *Client {
	t.Helper()
	c := NewClient(sessionID, userID, nil)
	h.mgr.Register(h.ctx, c)
	waitEvent(t, c, EventConnected)
	return c
}

func (h *harness) send(c *Client, event string, payload interface{}) {
	raw, _ := json.Marshal(payload)
	h.mgr.Handle(h.ctx, c.SessionID, Frame{Event: event, Data: raw})
}

func (h *harness) join(t *testing.T, c *Client, roomID int64) {
	t.Helper()
	h.send(c, EventJoinRoom, RoomRequest{RoomID: roomID})
	waitEvent(t, c, EventRoomJoined)
}

type received struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// waitEvent reads frames until one named event arrives.
func waitEvent(t *testing.T, c *Client, event string) map[string]interface{} {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw, ok := <-c.Send:
			require.True(t, ok, "send queue closed while waiting for %s", event)
			var r received
			require.NoError(t, json.Unmarshal(raw, &r))
			if r.Event == event {
				return r.Data
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
			return nil
		}
	}
}

// noEvent drains the queue for a short while and fails if event shows up.
func noEvent(t *testing.T, c *Client, event string) {
	t.Helper()
	deadline := time.After(150 * time.Millisecond)
	for {
		select {
		case raw := <-c.Send:
			var r received
			require.NoError(t, json.Unmarshal(raw, &r))
			require.NotEqual(t, event, r.Event, "unexpected %s: %v", event, r.Data)
		case <-deadline:
			return
		}
	}
}
