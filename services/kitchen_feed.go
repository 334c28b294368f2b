package services

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
)

const (
	DefaultKitchenExchange = "kitchen_fanout"
	DefaultKitchenQueue    = "kitchen.alerts"
	kitchenPrefetch        = 10
)

// KitchenFeed -> consumer RabbitMQ untuk frame dari sistem dapur (printer, tablet chef)
type KitchenFeed struct {
	Exchange string
	Queue    string
	Log      logrus.FieldLogger

	conn      *amqp.Connection
	ch        *amqp.Channel
	publisher Publisher
}

// DialKitchenFeed membuka koneksi dan channel; infrastruktur dideklarasikan di Run.
func DialKitchenFeed(url string, publisher Publisher) (*KitchenFeed, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	feed := newKitchenFeed(publisher)
	feed.conn = conn
	feed.ch = ch
	return feed, nil
}

func newKitchenFeed(publisher Publisher) *KitchenFeed {
	return &KitchenFeed{
		Exchange:  DefaultKitchenExchange,
		Queue:     DefaultKitchenQueue,
		Log:       utils.Log().WithField("component", "kitchen_feed"),
		publisher: publisher,
	}
}

// Run mengonsumsi queue sampai ctx selesai atau channel ditutup broker.
func (f *KitchenFeed) Run(ctx context.Context) error {
	if err := f.ch.ExchangeDeclare(f.Exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", f.Exchange, err)
	}
	if _, err := f.ch.QueueDeclare(f.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", f.Queue, err)
	}
	if err := f.ch.QueueBind(f.Queue, "", f.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind %s: %w", f.Queue, err)
	}
	if err := f.ch.Qos(kitchenPrefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	deliveries, err := f.ch.Consume(f.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", f.Queue, err)
	}
	f.Log.WithField("queue", f.Queue).Info("Kitchen feed consuming")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("kitchen feed: delivery channel closed")
			}
			if err := f.handle(d); err != nil {
				f.Log.WithError(err).Warn("Acknowledging delivery failed")
			}
		}
	}
}

// handle -> ack frame valid setelah dipublish, reject tanpa requeue untuk frame rusak,
// ack lalu abaikan kind yang tidak dikenal
func (f *KitchenFeed) handle(d amqp.Delivery) error {
	msg, err := protocol.Decode(d.Body)
	switch {
	case errors.Is(err, protocol.ErrUnknownKind):
		f.Log.WithField("kind", msg.Kind).Debug("Ignoring unknown kitchen event")
		return d.Ack(false)
	case err != nil:
		f.Log.WithError(err).Warn("Rejecting malformed kitchen frame")
		return d.Reject(false)
	case msg.Kind == protocol.KindPresenceChanged:
		// presence hanya berasal dari hub
		return d.Reject(false)
	}

	if err := f.publisher.Publish(msg.Payload); err != nil {
		f.Log.WithError(err).Error("Publishing kitchen event failed, requeueing")
		return d.Nack(false, true)
	}
	return d.Ack(false)
}

func (f *KitchenFeed) Close() {
	if f.ch != nil {
		_ = f.ch.Close()
	}
	if f.conn != nil {
		_ = f.conn.Close()
	}
}
