package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Delivery is one frame published on a topic.
type Delivery struct {
	Topic   string
	Payload []byte
}

// Backplane carries frames between all processes. Delivery is at most once.
type Backplane interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe receives every topic until ctx is done.
	Subscribe(ctx context.Context) (<-chan Delivery, error)
}

type RedisBackplane struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisBackplane publishes topic t on the channel <prefix><t>.
func NewRedisBackplane(rdb redis.UniversalClient, prefix string) *RedisBackplane {
	return &RedisBackplane{rdb: rdb, prefix: prefix}
}

func (b *RedisBackplane) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.rdb.Publish(ctx, b.prefix+topic, payload).Err()
}

func (b *RedisBackplane) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	ps := b.rdb.PSubscribe(ctx, b.prefix+"*")
	// 等待订阅确认，避免启动后丢消息
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Delivery, 256)
	go func() {
		defer close(out)
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					log.Warn().Msg("backplane subscription closed")
					return
				}
				d := Delivery{Topic: strings.TrimPrefix(m.Channel, b.prefix), Payload: []byte(m.Payload)}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// LocalBackplane loops frames back inside one process.
type LocalBackplane struct {
	mu   sync.RWMutex
	subs map[chan Delivery]struct{}
}

func NewLocalBackplane() *LocalBackplane {
	return &LocalBackplane{subs: map[chan Delivery]struct{}{}}
}

func (b *LocalBackplane) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- Delivery{Topic: topic, Payload: payload}:
		default:
		}
	}
	return nil
}

func (b *LocalBackplane) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	ch := make(chan Delivery, 256)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}
