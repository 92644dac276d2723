package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"staybook/internal/domain"
)

// ListingService owns the supporting listing surface: create, cached
// reads, availability toggles and guest reviews. The booking core only
// needs listings as the thing being reserved.
type ListingService struct {
	listings domain.ListingRepository
	reviews  domain.ReviewRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewListingService(l domain.ListingRepository, r domain.ReviewRepository, c domain.Cache, ttl time.Duration) *ListingService {
	return &ListingService{listings: l, reviews: r, cache: c, cacheTTL: ttl}
}

func listingKey(id uuid.UUID) string { return fmt.Sprintf("listing:%s", id) }

func (s *ListingService) CreateListing(ctx context.Context, hostID uuid.UUID, title, description, location string, pricePerNight decimal.Decimal) (domain.Listing, error) {
	l, err := domain.NewListing(hostID, title, description, location, pricePerNight, time.Now())
	if err != nil {
		return domain.Listing{}, err
	}
	if err := s.listings.CreateListing(ctx, l); err != nil {
		return domain.Listing{}, err
	}
	return l, nil
}

func (s *ListingService) GetListing(ctx context.Context, id uuid.UUID) (domain.ListingView, error) {
	key := listingKey(id)
	var lv domain.ListingView
	if ok, _ := s.cache.Get(ctx, key, &lv); ok {
		return lv, nil
	}
	lv, err := s.listings.GetListingView(ctx, id)
	if err != nil {
		return domain.ListingView{}, err
	}
	_ = s.cache.Set(ctx, key, lv, int(s.cacheTTL.Seconds()))
	return lv, nil
}

func (s *ListingService) SetAvailability(ctx context.Context, actorID, listingID uuid.UUID, available bool) (domain.Listing, error) {
	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return domain.Listing{}, err
	}
	if l.HostID != actorID {
		return domain.Listing{}, fmt.Errorf("%w: only the host may change availability", domain.ErrForbidden)
	}
	if err := s.listings.SetAvailability(ctx, listingID, available); err != nil {
		return domain.Listing{}, err
	}
	l.IsAvailable = available
	_ = s.cache.Del(ctx, listingKey(listingID))
	return l, nil
}

// Watch pins a listing onto the caller's watchlist.
func (s *ListingService) Watch(ctx context.Context, userID, listingID uuid.UUID) error {
	if _, err := s.listings.GetListing(ctx, listingID); err != nil {
		return err
	}
	return s.listings.AddToWatchlist(ctx, listingID, userID)
}

func (s *ListingService) Unwatch(ctx context.Context, userID, listingID uuid.UUID) error {
	if _, err := s.listings.GetListing(ctx, listingID); err != nil {
		return err
	}
	return s.listings.RemoveFromWatchlist(ctx, listingID, userID)
}

func (s *ListingService) Watchlist(ctx context.Context, userID uuid.UUID) ([]domain.Listing, error) {
	return s.listings.ListWatchlist(ctx, userID)
}

func (s *ListingService) SubmitReview(ctx context.Context, reviewerID, listingID uuid.UUID, rating int, comment string) (domain.Review, error) {
	if _, err := s.listings.GetListing(ctx, listingID); err != nil {
		return domain.Review{}, err
	}
	r, err := domain.NewReview(listingID, reviewerID, rating, comment, time.Now())
	if err != nil {
		return domain.Review{}, err
	}
	if err := s.reviews.CreateReview(ctx, r); err != nil {
		return domain.Review{}, err
	}
	// the listing view embeds the average rating
	_ = s.cache.Del(ctx, listingKey(listingID))
	return r, nil
}
