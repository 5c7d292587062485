package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const ExchangeType = "topic"

// BrokerChannel publishes order events to a RabbitMQ topic exchange,
// routing key = event kind (order.created, order.status_changed).
type BrokerChannel struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewBrokerChannel(url, exchange string) *BrokerChannel {
	return &BrokerChannel{url: url, exchange: exchange}
}

func (b *BrokerChannel) Name() string { return "broker" }

// Enabled reports whether a broker URL is configured.
func (b *BrokerChannel) Enabled() bool { return b.url != "" }

// channelLocked dials lazily and declares the exchange on first use.
func (b *BrokerChannel) channelLocked() (*amqp.Channel, error) {
	if b.ch != nil && !b.ch.IsClosed() {
		return b.ch, nil
	}
	b.closeLocked()
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return nil, fmt.Errorf("could not connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		b.exchange,   // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("could not declare exchange: %w", err)
	}
	b.conn, b.ch = conn, ch
	return ch, nil
}

func (b *BrokerChannel) Deliver(ctx context.Context, ev Event) error {
	if !b.Enabled() {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, err := b.channelLocked()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx,
		b.exchange,      // exchange
		string(ev.Kind), // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		b.closeLocked()
		return fmt.Errorf("broker publish: %w", err)
	}
	return nil
}

// Close releases the connection, if any.
func (b *BrokerChannel) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	return nil
}

func (b *BrokerChannel) closeLocked() {
	if b.ch != nil {
		_ = b.ch.Close()
		b.ch = nil
	}
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}
