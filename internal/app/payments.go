package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"staybook/internal/domain"
)

// PaymentService orchestrates settlement against the external gateway.
// The pending payment row always commits before the outbound call, so no
// database lock spans a network round trip, and verification handling is
// idempotent under at-least-once callback delivery.
type PaymentService struct {
	bookings domain.BookingRepository
	payments domain.PaymentRepository
	listings domain.ListingRepository
	users    domain.UserRepository
	gateway  domain.PaymentGateway
	notifier domain.Notifier
	cache    domain.Cache

	callbackBase string
	currency     string
}

func NewPaymentService(
	b domain.BookingRepository,
	p domain.PaymentRepository,
	l domain.ListingRepository,
	u domain.UserRepository,
	g domain.PaymentGateway,
	n domain.Notifier,
	c domain.Cache,
	callbackBase, currency string,
) *PaymentService {
	return &PaymentService{
		bookings: b, payments: p, listings: l, users: u,
		gateway: g, notifier: n, cache: c,
		callbackBase: callbackBase, currency: currency,
	}
}

// VerifyOutcome describes a processed verification callback.
type VerifyOutcome struct {
	BookingID uuid.UUID
	Message   string
}

// Initiate creates a Pending payment for a payable booking and opens a
// checkout session with the gateway. Gateway failure marks the payment
// Failed and leaves the booking Pending so a later Initiate can retry
// with a fresh payment record.
func (s *PaymentService) Initiate(ctx context.Context, bookingID uuid.UUID, payerEmail string) (string, error) {
	if payerEmail == "" {
		return "", fmt.Errorf("%w: payer email is required", domain.ErrValidation)
	}
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if b.Status != domain.BookingPending {
		return "", fmt.Errorf("%w: booking is %s, not payable", domain.ErrInvalidState, b.Status)
	}
	guest, err := s.users.GetUser(ctx, b.GuestID)
	if err != nil {
		return "", err
	}
	lst, err := s.listings.GetListing(ctx, b.ListingID)
	if err != nil {
		return "", err
	}

	txRef := domain.NewTxRef(b.ID)
	p := domain.NewPayment(b, txRef, time.Now())
	if err := s.payments.CreatePayment(ctx, p); err != nil {
		return "", err
	}

	checkoutURL, err := s.gateway.Initialize(ctx, domain.InitializePayment{
		Amount:      p.Amount,
		Currency:    s.currency,
		Email:       payerEmail,
		FirstName:   guest.FirstName,
		LastName:    guest.LastName,
		TxRef:       txRef,
		CallbackURL: fmt.Sprintf("%s/v1/payments/verify/%s", s.callbackBase, txRef),
		Title:       "Booking Payment",
		Description: fmt.Sprintf("Payment for booking %s on %s", b.ID, lst.Title),
	})
	if err != nil {
		if merr := s.payments.MarkPaymentFailed(ctx, txRef); merr != nil {
			log.Error().Err(merr).Str("tx_ref", txRef).Msg("mark payment failed after gateway error")
		}
		return "", err
	}
	return checkoutURL, nil
}

// Verify reconciles a gateway callback. The gateway is consulted first;
// a transport failure mutates nothing so the callback can simply be
// redelivered. A reported success completes the payment and confirms the
// booking atomically; repeats are no-ops returning the same outcome, and
// the confirmation notification fires exactly once.
func (s *PaymentService) Verify(ctx context.Context, txRef string) (VerifyOutcome, error) {
	res, err := s.gateway.Verify(ctx, txRef)
	if err != nil {
		return VerifyOutcome{}, err
	}
	p, err := s.payments.GetPaymentByTxRef(ctx, txRef)
	if err != nil {
		return VerifyOutcome{}, err
	}

	if !res.Succeeded {
		// conditional: a Completed payment is never demoted
		if merr := s.payments.MarkPaymentFailed(ctx, txRef); merr != nil {
			log.Error().Err(merr).Str("tx_ref", txRef).Msg("mark payment failed after verification failure")
		}
		return VerifyOutcome{BookingID: p.BookingID}, fmt.Errorf("%w: %s", domain.ErrGatewayRejected, res.Message)
	}

	bookingID, firstCompletion, err := s.payments.CompletePaymentConfirmBooking(ctx, txRef)
	if err != nil {
		return VerifyOutcome{}, err
	}
	if firstCompletion {
		_ = s.cache.Del(ctx, bookingKey(bookingID))
		go dispatchConfirmation(s.bookings, s.listings, s.users, s.notifier, bookingID)
	}
	return VerifyOutcome{
		BookingID: bookingID,
		Message:   "Payment successfully verified and records updated.",
	}, nil
}

// GetPayment exposes the payment snapshot for status polling.
func (s *PaymentService) GetPayment(ctx context.Context, txRef string) (domain.Payment, error) {
	return s.payments.GetPaymentByTxRef(ctx, txRef)
}
