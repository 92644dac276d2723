package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"staybook/internal/app"
	"staybook/internal/domain"
)

func newBookingService(f *fakeStore, n domain.Notifier) *app.BookingService {
	return app.NewBookingService(f, f, f, &fakeCache{}, n, 5*time.Minute)
}

func TestCreateBooking_HappyPath(t *testing.T) {
	f := newFakeStore()
	_, guest, listing := seedHostGuestListing(f)
	svc := newBookingService(f, nil)

	b, err := svc.CreateBooking(context.Background(), guest.ID, listing.ID, date("2024-06-10"), date("2024-06-13"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if b.Status != domain.BookingPending {
		t.Fatalf("status = %s, want PENDING", b.Status)
	}
	if want := decimal.RequireFromString("360.00"); !b.TotalPrice.Equal(want) {
		t.Fatalf("total = %s, want %s", b.TotalPrice, want)
	}
}

func TestCreateBooking_UnknownListing(t *testing.T) {
	f := newFakeStore()
	_, guest, _ := seedHostGuestListing(f)
	svc := newBookingService(f, nil)

	_, err := svc.CreateBooking(context.Background(), guest.ID, uuid.New(), date("2024-06-10"), date("2024-06-13"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateBooking_OverlapRejected(t *testing.T) {
	f := newFakeStore()
	_, guest, listing := seedHostGuestListing(f)
	svc := newBookingService(f, nil)
	ctx := context.Background()

	if _, err := svc.CreateBooking(ctx, guest.ID, listing.ID, date("2024-06-10"), date("2024-06-14")); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, err := svc.CreateBooking(ctx, uuid.New(), listing.ID, date("2024-06-12"), date("2024-06-16"))
	if !errors.Is(err, domain.ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}

	// same-day checkout/checkin is allowed
	if _, err := svc.CreateBooking(ctx, uuid.New(), listing.ID, date("2024-06-14"), date("2024-06-16")); err != nil {
		t.Fatalf("back-to-back booking: %v", err)
	}
}

func TestCreateBooking_DeclinedDoesNotBlock(t *testing.T) {
	f := newFakeStore()
	host, guest, listing := seedHostGuestListing(f)
	svc := newBookingService(f, nil)
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, guest.ID, listing.ID, date("2024-06-10"), date("2024-06-14"))
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := svc.Decline(ctx, host.ID, b.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if _, err := svc.CreateBooking(ctx, uuid.New(), listing.ID, date("2024-06-10"), date("2024-06-14")); err != nil {
		t.Fatalf("declined booking must not block the range: %v", err)
	}
}

func TestCreateBooking_UnavailableListing(t *testing.T) {
	f := newFakeStore()
	host, guest, listing := seedHostGuestListing(f)
	lsvc := app.NewListingService(f, f, &fakeCache{}, 5*time.Minute)
	if _, err := lsvc.SetAvailability(context.Background(), host.ID, listing.ID, false); err != nil {
		t.Fatalf("set availability: %v", err)
	}
	svc := newBookingService(f, nil)

	_, err := svc.CreateBooking(context.Background(), guest.ID, listing.ID, date("2024-06-10"), date("2024-06-13"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApprove_HostOnly(t *testing.T) {
	f := newFakeStore()
	host, guest, listing := seedHostGuestListing(f)
	n := newFakeNotifier()
	svc := newBookingService(f, n)
	ctx := context.Background()

	b, _ := svc.CreateBooking(ctx, guest.ID, listing.ID, date("2024-06-10"), date("2024-06-13"))

	if _, err := svc.Approve(ctx, guest.ID, b.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("guest approval: expected ErrForbidden, got %v", err)
	}
	if got := f.bookingStatus(b.ID); got != domain.BookingPending {
		t.Fatalf("failed approval mutated status to %s", got)
	}

	out, err := svc.Approve(ctx, host.ID, b.ID)
	if err != nil {
		t.Fatalf("host approval: %v", err)
	}
	if out.Status != domain.BookingConfirmed {
		t.Fatalf("status = %s, want CONFIRMED", out.Status)
	}
	if _, ok := n.waitOne(time.Second); !ok {
		t.Fatal("expected a confirmation notification on host approval")
	}
}

func TestDecline_OnlyFromPending(t *testing.T) {
	f := newFakeStore()
	host, guest, listing := seedHostGuestListing(f)
	svc := newBookingService(f, nil)
	ctx := context.Background()

	b, _ := svc.CreateBooking(ctx, guest.ID, listing.ID, date("2024-06-10"), date("2024-06-13"))
	if _, err := svc.Approve(ctx, host.ID, b.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Decline(ctx, host.ID, b.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("decline confirmed: expected ErrInvalidTransition, got %v", err)
	}

	b2, _ := svc.CreateBooking(ctx, guest.ID, listing.ID, date("2024-07-10"), date("2024-07-13"))
	if _, err := svc.Decline(ctx, host.ID, b2.ID); err != nil {
		t.Fatalf("decline pending: %v", err)
	}
	if _, err := svc.Decline(ctx, host.ID, b2.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second decline: expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancel_PartiesAndGuards(t *testing.T) {
	f := newFakeStore()
	host, guest, listing := seedHostGuestListing(f)
	svc := newBookingService(f, nil)
	ctx := context.Background()

	b, _ := svc.CreateBooking(ctx, guest.ID, listing.ID, date("2024-06-10"), date("2024-06-13"))

	if _, err := svc.Cancel(ctx, uuid.New(), b.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger cancel: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Cancel(ctx, guest.ID, b.ID); err != nil {
		t.Fatalf("guest cancel: %v", err)
	}

	// confirmed bookings cannot be canceled
	b2, _ := svc.CreateBooking(ctx, guest.ID, listing.ID, date("2024-07-10"), date("2024-07-13"))
	if _, err := svc.Approve(ctx, host.ID, b2.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Cancel(ctx, guest.ID, b2.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("cancel confirmed: expected ErrInvalidTransition, got %v", err)
	}

	// host may cancel a pending booking on their listing
	b3, _ := svc.CreateBooking(ctx, uuid.New(), listing.ID, date("2024-08-10"), date("2024-08-13"))
	if _, err := svc.Cancel(ctx, host.ID, b3.ID); err != nil {
		t.Fatalf("host cancel: %v", err)
	}
}

func TestGetBooking_Authorization(t *testing.T) {
	f := newFakeStore()
	host, guest, listing := seedHostGuestListing(f)
	svc := newBookingService(f, nil)
	ctx := context.Background()

	b, _ := svc.CreateBooking(ctx, guest.ID, listing.ID, date("2024-06-10"), date("2024-06-13"))

	if _, err := svc.GetBooking(ctx, guest.ID, b.ID); err != nil {
		t.Fatalf("guest read: %v", err)
	}
	if _, err := svc.GetBooking(ctx, host.ID, b.ID); err != nil {
		t.Fatalf("host read: %v", err)
	}
	if _, err := svc.GetBooking(ctx, uuid.New(), b.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger read: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.GetBooking(ctx, guest.ID, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing booking: expected ErrNotFound, got %v", err)
	}
}

func TestSubmitReview(t *testing.T) {
	f := newFakeStore()
	_, guest, listing := seedHostGuestListing(f)
	svc := app.NewListingService(f, f, &fakeCache{}, 5*time.Minute)
	ctx := context.Background()

	if _, err := svc.SubmitReview(ctx, guest.ID, listing.ID, 6, "too good"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("rating 6: expected validation error, got %v", err)
	}
	if _, err := svc.SubmitReview(ctx, guest.ID, listing.ID, 4, "lovely"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.SubmitReview(ctx, guest.ID, listing.ID, 5, "again"); !errors.Is(err, domain.ErrDuplicateReview) {
		t.Fatalf("duplicate: expected ErrDuplicateReview, got %v", err)
	}

	lv, err := svc.GetListing(ctx, listing.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if lv.ReviewCount != 1 || lv.AverageRating == nil || *lv.AverageRating != 4.0 {
		t.Fatalf("unexpected view: %+v", lv)
	}
}

func TestWatchlist(t *testing.T) {
	f := newFakeStore()
	_, guest, listing := seedHostGuestListing(f)
	svc := app.NewListingService(f, f, &fakeCache{}, 5*time.Minute)
	ctx := context.Background()

	if err := svc.Watch(ctx, guest.ID, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown listing: expected ErrNotFound, got %v", err)
	}
	if err := svc.Watch(ctx, guest.ID, listing.ID); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := svc.Watch(ctx, guest.ID, listing.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("double watch: expected validation error, got %v", err)
	}

	ls, err := svc.Watchlist(ctx, guest.ID)
	if err != nil {
		t.Fatalf("watchlist: %v", err)
	}
	if len(ls) != 1 || ls[0].ID != listing.ID {
		t.Fatalf("watchlist = %+v, want the seeded listing", ls)
	}

	if err := svc.Unwatch(ctx, guest.ID, listing.ID); err != nil {
		t.Fatalf("unwatch: %v", err)
	}
	if err := svc.Unwatch(ctx, guest.ID, listing.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unwatch absent: expected validation error, got %v", err)
	}
	if ls, _ := svc.Watchlist(ctx, guest.ID); len(ls) != 0 {
		t.Fatalf("watchlist not emptied: %+v", ls)
	}
}
