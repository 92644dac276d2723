package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is a host-owned bookable property. Deletion is not modeled;
// hosts soft-disable via IsAvailable.
type Listing struct {
	ID            uuid.UUID
	HostID        uuid.UUID
	Title         string
	Description   string
	Location      string
	PricePerNight decimal.Decimal
	IsAvailable   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewListing(hostID uuid.UUID, title, description, location string, pricePerNight decimal.Decimal, now time.Time) (Listing, error) {
	if title == "" {
		return Listing{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if location == "" {
		return Listing{}, fmt.Errorf("%w: location is required", ErrValidation)
	}
	if !pricePerNight.IsPositive() {
		return Listing{}, fmt.Errorf("%w: price_per_night must be positive", ErrValidation)
	}
	return Listing{
		ID:            uuid.New(),
		HostID:        hostID,
		Title:         title,
		Description:   description,
		Location:      location,
		PricePerNight: pricePerNight,
		IsAvailable:   true,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}, nil
}
