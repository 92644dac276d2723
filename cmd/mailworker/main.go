package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	amqpad "staybook/internal/adapters/amqp"
	"staybook/internal/adapters/mail"
	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
	"staybook/internal/shared"
)

func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Int("workers", cfg.MailWorkers).
		Str("smtp", cfg.SMTPAddr).
		Msg("mail worker starting")

	mailer := mail.New(cfg.SMTPAddr, cfg.SMTPFrom, cfg.MailLogDir)
	sem := semaphore.NewWeighted(int64(cfg.MailWorkers))

	handler := func(ctx context.Context, ev domain.BookingConfirmedEvent) error {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func() {
			defer sem.Release(1)
			if err := mailer.SendBookingConfirmation(ev); err != nil {
				log.Error().Err(err).Str("booking_id", ev.BookingID).Msg("send confirmation failed")
				return
			}
			log.Info().Str("booking_id", ev.BookingID).Str("to", ev.GuestEmail).Msg("confirmation sent")
		}()
		return nil
	}

	if err := amqpad.Consume(ctx, cfg.AMQPURL, cfg.MailWorkers*2, handler); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("consumer stopped")
	}
	log.Info().Msg("mail worker shut down")
}
