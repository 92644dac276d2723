package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID         uuid.UUID
	ListingID  uuid.UUID
	ReviewerID uuid.UUID
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

func NewReview(listingID, reviewerID uuid.UUID, rating int, comment string, now time.Time) (Review, error) {
	if rating < 1 || rating > 5 {
		return Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	return Review{
		ID:         uuid.New(),
		ListingID:  listingID,
		ReviewerID: reviewerID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  now.UTC(),
	}, nil
}
