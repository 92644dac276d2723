package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"staybook/internal/domain"
)

// BookingService owns the booking lifecycle: creation against an
// available, non-overlapping date range and the guarded status
// transitions. Actor authority is checked here; state-machine guards live
// on the entity.
type BookingService struct {
	listings domain.ListingRepository
	bookings domain.BookingRepository
	users    domain.UserRepository
	cache    domain.Cache
	notifier domain.Notifier
	cacheTTL time.Duration
}

func NewBookingService(l domain.ListingRepository, b domain.BookingRepository, u domain.UserRepository, c domain.Cache, n domain.Notifier, ttl time.Duration) *BookingService {
	return &BookingService{listings: l, bookings: b, users: u, cache: c, notifier: n, cacheTTL: ttl}
}

func bookingKey(id uuid.UUID) string { return fmt.Sprintf("booking:%s", id) }

// CreateBooking validates the range, prices the stay and inserts the
// Pending booking. The overlap check runs inside the repository
// transaction, serialized per listing, so two concurrent requests for
// clashing ranges cannot both pass it.
func (s *BookingService) CreateBooking(ctx context.Context, guestID, listingID uuid.UUID, start, end time.Time) (domain.Booking, error) {
	lst, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return domain.Booking{}, err
	}
	b, err := domain.NewBooking(lst, guestID, start, end, time.Now())
	if err != nil {
		return domain.Booking{}, err
	}
	if err := s.bookings.CreateBooking(ctx, b); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

// GetBooking returns a booking to its guest or to the host of its
// listing; anyone else gets Forbidden.
func (s *BookingService) GetBooking(ctx context.Context, actorID, id uuid.UUID) (domain.Booking, error) {
	key := bookingKey(id)
	var b domain.Booking
	ok, _ := s.cache.Get(ctx, key, &b)
	if !ok {
		var err error
		b, err = s.bookings.GetBooking(ctx, id)
		if err != nil {
			return domain.Booking{}, err
		}
		_ = s.cache.Set(ctx, key, b, int(s.cacheTTL.Seconds()))
	}
	if b.GuestID != actorID {
		lst, err := s.listings.GetListing(ctx, b.ListingID)
		if err != nil {
			return domain.Booking{}, err
		}
		if lst.HostID != actorID {
			return domain.Booking{}, fmt.Errorf("%w: not a party to this booking", domain.ErrForbidden)
		}
	}
	return b, nil
}

func (s *BookingService) ListForGuest(ctx context.Context, guestID uuid.UUID) ([]domain.Booking, error) {
	return s.bookings.ListBookingsByGuest(ctx, guestID)
}

func (s *BookingService) ListForListing(ctx context.Context, actorID, listingID uuid.UUID) ([]domain.Booking, error) {
	lst, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if lst.HostID != actorID {
		return nil, fmt.Errorf("%w: only the host may list a listing's bookings", domain.ErrForbidden)
	}
	return s.bookings.ListBookingsByListing(ctx, listingID)
}

// Approve confirms a pending booking on the host's authority and
// dispatches the confirmation notification.
func (s *BookingService) Approve(ctx context.Context, actorID, bookingID uuid.UUID) (domain.Booking, error) {
	b, lst, err := s.loadBookingWithListing(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if lst.HostID != actorID {
		return domain.Booking{}, fmt.Errorf("%w: only the listing host may approve", domain.ErrForbidden)
	}
	if err := b.Approve(); err != nil {
		return domain.Booking{}, err
	}
	if err := s.bookings.UpdateBookingStatus(ctx, b.ID, domain.BookingPending, domain.BookingConfirmed); err != nil {
		return domain.Booking{}, err
	}
	_ = s.cache.Del(ctx, bookingKey(b.ID))
	go dispatchConfirmation(s.bookings, s.listings, s.users, s.notifier, b.ID)
	return b, nil
}

// Decline rejects a pending booking on the host's authority.
func (s *BookingService) Decline(ctx context.Context, actorID, bookingID uuid.UUID) (domain.Booking, error) {
	b, lst, err := s.loadBookingWithListing(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if lst.HostID != actorID {
		return domain.Booking{}, fmt.Errorf("%w: only the listing host may decline", domain.ErrForbidden)
	}
	if err := b.Decline(); err != nil {
		return domain.Booking{}, err
	}
	if err := s.bookings.UpdateBookingStatus(ctx, b.ID, domain.BookingPending, domain.BookingDeclined); err != nil {
		return domain.Booking{}, err
	}
	_ = s.cache.Del(ctx, bookingKey(b.ID))
	return b, nil
}

// Cancel withdraws a pending booking. The guest on the booking and the
// host of its listing may cancel; confirmed bookings cannot be canceled
// since their payment may already be settled.
func (s *BookingService) Cancel(ctx context.Context, actorID, bookingID uuid.UUID) (domain.Booking, error) {
	b, lst, err := s.loadBookingWithListing(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if b.GuestID != actorID && lst.HostID != actorID {
		return domain.Booking{}, fmt.Errorf("%w: not a party to this booking", domain.ErrForbidden)
	}
	if err := b.Cancel(); err != nil {
		return domain.Booking{}, err
	}
	if err := s.bookings.UpdateBookingStatus(ctx, b.ID, domain.BookingPending, domain.BookingCanceled); err != nil {
		return domain.Booking{}, err
	}
	_ = s.cache.Del(ctx, bookingKey(b.ID))
	return b, nil
}

func (s *BookingService) loadBookingWithListing(ctx context.Context, bookingID uuid.UUID) (domain.Booking, domain.Listing, error) {
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, domain.Listing{}, err
	}
	lst, err := s.listings.GetListing(ctx, b.ListingID)
	if err != nil {
		return domain.Booking{}, domain.Listing{}, err
	}
	return b, lst, nil
}
