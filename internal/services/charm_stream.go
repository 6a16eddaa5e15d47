package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Subscription delivers raw balance-change payloads until its context ends,
// after which Messages is closed.
type Subscription struct {
	ID       string
	Messages <-chan []byte
}

// CharmStream fans the charms pub/sub channel out to stream clients.
type CharmStream struct {
	rdb *redis.Client
}

func NewCharmStream(rdb *redis.Client) *CharmStream {
	return &CharmStream{rdb: rdb}
}

// Available reports whether events can be delivered at all.
func (s *CharmStream) Available() bool { return s.rdb != nil }

// Subscribe starts forwarding events. Without a cache store the subscription
// stays open and silent until ctx is done.
func (s *CharmStream) Subscribe(ctx context.Context) *Subscription {
	out := make(chan []byte)
	sub := &Subscription{ID: uuid.NewString(), Messages: out}

	go func() {
		defer close(out)
		if s.rdb == nil {
			<-ctx.Done()
			return
		}
		s.run(ctx, sub.ID, out)
	}()
	return sub
}

func (s *CharmStream) run(ctx context.Context, id string, out chan<- []byte) {
	b := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	for {
		ps := s.rdb.Subscribe(ctx, CharmsChannel)
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			if ctx.Err() != nil {
				return
			}
			wait := b.Duration()
			log.Warn().Err(err).Str("subscription", id).Dur("retry_in", wait).Msg("charms subscribe failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()
		log.Debug().Str("subscription", id).Msg("charms stream attached")

		done := forward(ctx, ps.Channel(), out)
		_ = ps.Close()
		if done {
			return
		}
	}
}

// forward copies messages until ctx ends (true) or the channel closes (false).
func forward(ctx context.Context, in <-chan *redis.Message, out chan<- []byte) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case msg, ok := <-in:
			if !ok {
				return false
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return true
			}
		}
	}
}
