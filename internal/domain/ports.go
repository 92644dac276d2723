package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UserRepository interface {
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
}

type ListingRepository interface {
	CreateListing(ctx context.Context, l Listing) error
	GetListing(ctx context.Context, id uuid.UUID) (Listing, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	GetListingView(ctx context.Context, id uuid.UUID) (ListingView, error)
	// AddToWatchlist is rejected with ErrValidation when the listing is
	// already on the user's watchlist; RemoveFromWatchlist likewise when
	// it is not.
	AddToWatchlist(ctx context.Context, listingID, userID uuid.UUID) error
	RemoveFromWatchlist(ctx context.Context, listingID, userID uuid.UUID) error
	ListWatchlist(ctx context.Context, userID uuid.UUID) ([]Listing, error)
}

type BookingRepository interface {
	// CreateBooking runs the overlap check and the insert in one
	// transaction, serialized per listing; ErrOverlap when the range is
	// taken, ErrNotFound when the listing is gone.
	CreateBooking(ctx context.Context, b Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (Booking, error)
	// UpdateBookingStatus applies a conditional transition; a booking no
	// longer in from loses with ErrInvalidTransition.
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) error
	ListBookingsByGuest(ctx context.Context, guestID uuid.UUID) ([]Booking, error)
	ListBookingsByListing(ctx context.Context, listingID uuid.UUID) ([]Booking, error)
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, p Payment) error
	GetPaymentByTxRef(ctx context.Context, txRef string) (Payment, error)
	// MarkPaymentFailed flips a Pending payment to Failed; Completed
	// payments are never overwritten.
	MarkPaymentFailed(ctx context.Context, txRef string) error
	// CompletePaymentConfirmBooking atomically completes the payment and
	// confirms its booking. firstCompletion is true only for the call that
	// actually performed the Pending->Completed transition, so callers can
	// dispatch side effects exactly once under duplicate delivery. A
	// booking that is neither Pending nor Confirmed refuses settlement
	// with ErrInvalidState and the payment is left untouched.
	CompletePaymentConfirmBooking(ctx context.Context, txRef string) (bookingID uuid.UUID, firstCompletion bool, err error)
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, r Review) error
}

// PaymentGateway is the outbound protocol to the external processor.
type PaymentGateway interface {
	Initialize(ctx context.Context, req InitializePayment) (checkoutURL string, err error)
	Verify(ctx context.Context, txRef string) (VerifyResult, error)
}

type InitializePayment struct {
	Amount      decimal.Decimal
	Currency    string
	Email       string
	FirstName   string
	LastName    string
	TxRef       string
	CallbackURL string
	Title       string
	Description string
}

type VerifyResult struct {
	Succeeded bool
	Message   string
}

// Notifier submits asynchronous work; failures are logged by callers,
// never propagated into booking/payment transactions.
type Notifier interface {
	BookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error
}

// BookingConfirmedEvent carries everything a downstream mailer needs
// without touching the primary store.
type BookingConfirmedEvent struct {
	BookingID   string `json:"booking_id"`
	GuestName   string `json:"guest_name"`
	GuestEmail  string `json:"guest_email"`
	ListingName string `json:"listing_name"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	TotalPrice  string `json:"total_price"`
	ConfirmedAt string `json:"confirmed_at"`
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Read models

type ListingView struct {
	ID            uuid.UUID
	HostID        uuid.UUID
	Title         string
	Description   string
	Location      string
	PricePerNight decimal.Decimal
	IsAvailable   bool
	AverageRating *float64
	ReviewCount   int
}
