package domain

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Payment is one settlement attempt for a booking. A booking may carry
// several payments (retries after gateway failures) but at most one ever
// reaches Completed. Amount is always the booking's total_price snapshot
// taken at initiation.
type Payment struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	Amount    decimal.Decimal
	Status    PaymentStatus
	TxRef     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTxRef builds a globally unique, human-traceable transaction
// reference: stable prefix + booking id + random suffix.
func NewTxRef(bookingID uuid.UUID) string {
	var b [4]byte
	_, _ = crand.Read(b[:])
	return fmt.Sprintf("booking-payment-%s-%s", bookingID, hex.EncodeToString(b[:]))
}

func NewPayment(b Booking, txRef string, now time.Time) Payment {
	return Payment{
		ID:        uuid.New(),
		BookingID: b.ID,
		Amount:    b.TotalPrice,
		Status:    PaymentPending,
		TxRef:     txRef,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}
