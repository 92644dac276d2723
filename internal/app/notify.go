package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"staybook/internal/domain"
)

// dispatchConfirmation builds and submits the confirmed-booking event.
// It runs after the confirming transaction has committed, on its own
// context: notification failure is logged, never surfaced, and never
// rolls anything back. Callers invoke it in a goroutine.
func dispatchConfirmation(
	bookings domain.BookingRepository,
	listings domain.ListingRepository,
	users domain.UserRepository,
	notifier domain.Notifier,
	bookingID uuid.UUID,
) {
	if notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b, err := bookings.GetBooking(ctx, bookingID)
	if err != nil {
		log.Warn().Err(err).Str("booking_id", bookingID.String()).Msg("confirmation dispatch: load booking failed")
		return
	}
	lst, err := listings.GetListing(ctx, b.ListingID)
	if err != nil {
		log.Warn().Err(err).Str("booking_id", bookingID.String()).Msg("confirmation dispatch: load listing failed")
		return
	}
	guest, err := users.GetUser(ctx, b.GuestID)
	if err != nil {
		log.Warn().Err(err).Str("booking_id", bookingID.String()).Msg("confirmation dispatch: load guest failed")
		return
	}

	ev := domain.BookingConfirmedEvent{
		BookingID:   b.ID.String(),
		GuestName:   guest.FullName(),
		GuestEmail:  guest.Email,
		ListingName: lst.Title,
		StartDate:   b.StartDate.Format(domain.DateLayout),
		EndDate:     b.EndDate.Format(domain.DateLayout),
		TotalPrice:  b.TotalPrice.StringFixed(2),
		ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := notifier.BookingConfirmed(ctx, ev); err != nil {
		log.Warn().Err(err).Str("booking_id", bookingID.String()).Msg("confirmation dispatch failed")
	}
}
