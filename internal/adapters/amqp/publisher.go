// Package amqpad publishes and consumes booking.confirmed events over
// RabbitMQ. Delivery to the mail worker is at-least-once; the event body
// is self-contained so consumers never read the primary store.
package amqpad

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"staybook/internal/domain"
)

// QueueName is the durable queue shared by the API and the mail worker.
const QueueName = "booking.confirmed"

type Publisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string) (*Publisher, error) {
	p := &Publisher{url: url}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// BookingConfirmed publishes the event as a persistent message,
// reconnecting once on a stale channel.
func (p *Publisher) BookingConfirmed(ctx context.Context, ev domain.BookingConfirmedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	pub := func() error {
		return p.ch.PublishWithContext(ctx, "", QueueName, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	}
	if err := pub(); err != nil {
		if rerr := p.connect(); rerr != nil {
			return fmt.Errorf("publish: %w (reconnect: %v)", err, rerr)
		}
		return pub()
	}
	return nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
