package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCanceled  BookingStatus = "CANCELED"
	BookingDeclined  BookingStatus = "DECLINED"
)

// DateLayout is the wire and storage format for stay dates (no time of day).
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD stay date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	return t, nil
}

// Booking is a guest's reservation contract against a listing for a
// half-open date range [StartDate, EndDate). TotalPrice is fixed at
// creation and never mutated afterwards.
type Booking struct {
	ID         uuid.UUID
	ListingID  uuid.UUID
	GuestID    uuid.UUID
	StartDate  time.Time
	EndDate    time.Time
	TotalPrice decimal.Decimal
	Status     BookingStatus
	CreatedAt  time.Time
}

func NewBooking(listing Listing, guestID uuid.UUID, start, end time.Time, now time.Time) (Booking, error) {
	if !end.After(start) {
		return Booking{}, fmt.Errorf("%w: end date must be after start date", ErrValidation)
	}
	if !listing.IsAvailable {
		return Booking{}, fmt.Errorf("%w: listing is not available", ErrValidation)
	}
	total, err := ComputeTotal(listing.PricePerNight, start, end)
	if err != nil {
		return Booking{}, err
	}
	return Booking{
		ID:         uuid.New(),
		ListingID:  listing.ID,
		GuestID:    guestID,
		StartDate:  start,
		EndDate:    end,
		TotalPrice: total,
		Status:     BookingPending,
		CreatedAt:  now.UTC(),
	}, nil
}

// Approve moves Pending -> Confirmed (host approval path).
func (b *Booking) Approve() error {
	if b.Status != BookingPending {
		return fmt.Errorf("%w: cannot approve a %s booking", ErrInvalidTransition, b.Status)
	}
	b.Status = BookingConfirmed
	return nil
}

// Decline moves Pending -> Declined.
func (b *Booking) Decline() error {
	if b.Status != BookingPending {
		return fmt.Errorf("%w: cannot decline a %s booking", ErrInvalidTransition, b.Status)
	}
	b.Status = BookingDeclined
	return nil
}

// Cancel moves Pending -> Canceled. Confirmed bookings cannot be canceled:
// their payment may already be settled and refunds are out of scope.
func (b *Booking) Cancel() error {
	if b.Status != BookingPending {
		return fmt.Errorf("%w: cannot cancel a %s booking", ErrInvalidTransition, b.Status)
	}
	b.Status = BookingCanceled
	return nil
}

// ConfirmByPayment moves Pending -> Confirmed on a verified payment.
// Confirming an already-confirmed booking is a no-op, not an error;
// gateway callbacks are delivered at least once.
func (b *Booking) ConfirmByPayment() error {
	switch b.Status {
	case BookingPending:
		b.Status = BookingConfirmed
		return nil
	case BookingConfirmed:
		return nil
	default:
		return fmt.Errorf("%w: cannot confirm a %s booking", ErrInvalidTransition, b.Status)
	}
}

// Blocking reports whether the booking occupies its date range for
// availability purposes.
func (b Booking) Blocking() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

// Overlaps reports half-open range overlap: a same-day checkout/checkin
// pair does not collide.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
