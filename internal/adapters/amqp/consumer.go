package amqpad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"staybook/internal/domain"
)

// Handler processes one confirmed-booking event. Returning an error
// rejects the message without requeueing.
type Handler func(ctx context.Context, ev domain.BookingConfirmedEvent) error

// Consume runs a reconnecting consume loop against the booking.confirmed
// queue until ctx is canceled. Processing errors are logged and the
// message rejected; they never stop the loop.
func Consume(ctx context.Context, url string, prefetch int, h Handler) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("mail consumer: broker dial failed")
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(ctx, conn, prefetch, h); err != nil {
			if errors.Is(err, context.Canceled) {
				conn.Close()
				return err
			}
			log.Warn().Err(err).Msg("mail consumer: loop ended, reconnecting")
		}
		conn.Close()
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, prefetch int, h Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		log.Warn().Err(err).Msg("mail consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			var ev domain.BookingConfirmedEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				log.Error().Err(err).Msg("mail consumer: bad event payload")
				_ = d.Nack(false, false)
				continue
			}
			if err := h(ctx, ev); err != nil {
				log.Error().Err(err).Str("booking_id", ev.BookingID).Msg("mail consumer: handle failed")
				_ = d.Nack(false, false) // do not requeue, avoids tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
