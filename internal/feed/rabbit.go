package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// RabbitTransport carries the change feed over a RabbitMQ topic exchange,
// routing key per shop. Each subscription gets its own exclusive queue so
// every consumer sees every event.
type RabbitTransport struct {
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	exchange string
	log      *logrus.Entry
}

func NewRabbitTransport(url, exchange string) (*RabbitTransport, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitTransport{
		conn:     conn,
		pubCh:    ch,
		exchange: exchange,
		log:      logrus.WithField("component", "feed.rabbit"),
	}, nil
}

func (t *RabbitTransport) Subscribe(
	ctx context.Context,
	shopID uint,
	onEvent func(Event),
	onStatus func(Status),
) (Subscription, error) {

	ch, err := t.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, Channel(shopID), t.exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	// Plain Consume: the subscription must outlive the connect-attempt
	// context, teardown goes through Unsubscribe instead.
	deliveries, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}

	sub := &rabbitSubscription{ch: ch}

	go func() {
		onStatus(StatusSubscribed)
		for d := range deliveries {
			var ev Event
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				t.log.WithError(err).WithField("key", d.RoutingKey).
					Warn("dropping malformed feed event")
				_ = d.Nack(false, false)
				continue
			}
			onEvent(ev)
			_ = d.Ack(false)
		}
		// Deliveries close either because Unsubscribe tore the channel
		// down or because the broker connection died.
		if sub.closed.Load() {
			onStatus(StatusClosed)
		} else {
			onStatus(StatusError)
		}
	}()

	return sub, nil
}

func (t *RabbitTransport) Publish(ctx context.Context, shopID uint, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return t.pubCh.PublishWithContext(ctx, t.exchange, Channel(shopID), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        b,
	})
}

func (t *RabbitTransport) Close() error {
	if t.pubCh != nil {
		_ = t.pubCh.Close()
	}
	return t.conn.Close()
}

type rabbitSubscription struct {
	ch     *amqp.Channel
	closed atomic.Bool
}

func (s *rabbitSubscription) Unsubscribe() {
	s.closed.Store(true)
	_ = s.ch.Close()
}

var _ Bus = (*RabbitTransport)(nil)
