package feed

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisTransport carries the change feed over Redis Pub/Sub, one channel
// per shop.
type RedisTransport struct {
	client *redis.Client
	log    *logrus.Entry
}

func NewRedisTransport(client *redis.Client) *RedisTransport {
	return &RedisTransport{
		client: client,
		log:    logrus.WithField("component", "feed.redis"),
	}
}

func (t *RedisTransport) Subscribe(
	ctx context.Context,
	shopID uint,
	onEvent func(Event),
	onStatus func(Status),
) (Subscription, error) {

	ps := t.client.Subscribe(ctx, Channel(shopID))

	// Receive blocks until the server acknowledges the subscription, so
	// a returned Subscription is already live.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{ps: ps}
	go t.pump(ps, &sub.closed, onEvent, onStatus)
	return sub, nil
}

// messageReceiver is the slice of redis.PubSub the pump reads from.
// ReceiveMessage surfaces connection errors to the caller, unlike
// Channel(), which resubscribes internally without a word; anything
// published during such a silent gap would be lost with the subscriber
// still believing it is live.
type messageReceiver interface {
	ReceiveMessage(ctx context.Context) (*redis.Message, error)
}

// pump delivers messages until the first receive error, then reports it
// and exits. Resubscribing is the subscriber's job; a fresh Subscribe is
// the only way back to a healthy stream.
func (t *RedisTransport) pump(rcv messageReceiver, closed *atomic.Bool, onEvent func(Event), onStatus func(Status)) {
	onStatus(StatusSubscribed)
	for {
		msg, err := rcv.ReceiveMessage(context.Background())
		if err != nil {
			if closed.Load() {
				onStatus(StatusClosed)
				return
			}
			t.log.WithError(err).Warn("feed receive failed")
			onStatus(StatusError)
			return
		}

		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.log.WithError(err).WithField("channel", msg.Channel).
				Warn("dropping malformed feed event")
			continue
		}
		onEvent(ev)
	}
}

func (t *RedisTransport) Publish(ctx context.Context, shopID uint, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return t.client.Publish(ctx, Channel(shopID), b).Err()
}

type redisSubscription struct {
	ps     *redis.PubSub
	closed atomic.Bool
}

func (s *redisSubscription) Unsubscribe() {
	s.closed.Store(true)
	_ = s.ps.Close()
}

var _ Bus = (*RedisTransport)(nil)
