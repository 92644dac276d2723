package app_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"staybook/internal/domain"
)

// ---- in-memory store implementing the repository ports ----

type fakeStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]domain.User
	listings map[uuid.UUID]domain.Listing
	bookings map[uuid.UUID]domain.Booking
	payments map[string]domain.Payment
	reviews  []domain.Review
	watches  map[uuid.UUID][]uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[uuid.UUID]domain.User{},
		listings: map[uuid.UUID]domain.Listing{},
		bookings: map[uuid.UUID]domain.Booking{},
		payments: map[string]domain.Payment{},
		watches:  map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakeStore) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) CreateListing(ctx context.Context, l domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings[l.ID] = l
	return nil
}

func (f *fakeStore) GetListing(ctx context.Context, id uuid.UUID) (domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (f *fakeStore) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.IsAvailable = available
	f.listings[id] = l
	return nil
}

func (f *fakeStore) GetListingView(ctx context.Context, id uuid.UUID) (domain.ListingView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return domain.ListingView{}, domain.ErrNotFound
	}
	lv := domain.ListingView{
		ID: l.ID, HostID: l.HostID, Title: l.Title, Description: l.Description,
		Location: l.Location, PricePerNight: l.PricePerNight, IsAvailable: l.IsAvailable,
	}
	var sum int
	for _, r := range f.reviews {
		if r.ListingID == id {
			sum += r.Rating
			lv.ReviewCount++
		}
	}
	if lv.ReviewCount > 0 {
		avg := float64(sum) / float64(lv.ReviewCount)
		lv.AverageRating = &avg
	}
	return lv, nil
}

func (f *fakeStore) AddToWatchlist(ctx context.Context, listingID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.watches[userID] {
		if id == listingID {
			return fmt.Errorf("%w: listing already in watchlist", domain.ErrValidation)
		}
	}
	f.watches[userID] = append(f.watches[userID], listingID)
	return nil
}

func (f *fakeStore) RemoveFromWatchlist(ctx context.Context, listingID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range f.watches[userID] {
		if id == listingID {
			f.watches[userID] = append(f.watches[userID][:i], f.watches[userID][i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: listing not in watchlist", domain.ErrValidation)
}

func (f *fakeStore) ListWatchlist(ctx context.Context, userID uuid.UUID) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.watches[userID]
	out := make([]domain.Listing, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // newest first
		if l, ok := f.listings[ids[i]]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateBooking(ctx context.Context, b domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listings[b.ListingID]; !ok {
		return domain.ErrNotFound
	}
	for _, other := range f.bookings {
		if other.ListingID == b.ListingID && other.Blocking() &&
			domain.Overlaps(b.StartDate, b.EndDate, other.StartDate, other.EndDate) {
			return domain.ErrOverlap
		}
	}
	f.bookings[b.ID] = b
	return nil
}

func (f *fakeStore) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Status != from {
		return fmt.Errorf("%w: booking is %s", domain.ErrInvalidTransition, b.Status)
	}
	b.Status = to
	f.bookings[id] = b
	return nil
}

func (f *fakeStore) ListBookingsByGuest(ctx context.Context, guestID uuid.UUID) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.GuestID == guestID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) ListBookingsByListing(ctx context.Context, listingID uuid.UUID) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.ListingID == listingID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) CreatePayment(ctx context.Context, p domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.TxRef] = p
	return nil
}

func (f *fakeStore) GetPaymentByTxRef(ctx context.Context, txRef string) (domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[txRef]
	if !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) MarkPaymentFailed(ctx context.Context, txRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[txRef]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status == domain.PaymentPending {
		p.Status = domain.PaymentFailed
		f.payments[txRef] = p
	}
	return nil
}

func (f *fakeStore) CompletePaymentConfirmBooking(ctx context.Context, txRef string) (uuid.UUID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[txRef]
	if !ok {
		return uuid.Nil, false, domain.ErrNotFound
	}
	switch p.Status {
	case domain.PaymentCompleted:
		return p.BookingID, false, nil
	case domain.PaymentFailed:
		return uuid.Nil, false, fmt.Errorf("%w: payment already failed", domain.ErrInvalidState)
	}
	b, ok := f.bookings[p.BookingID]
	if !ok {
		return uuid.Nil, false, domain.ErrNotFound
	}
	if b.Status != domain.BookingPending && b.Status != domain.BookingConfirmed {
		return uuid.Nil, false, fmt.Errorf("%w: booking is %s", domain.ErrInvalidState, b.Status)
	}
	p.Status = domain.PaymentCompleted
	f.payments[txRef] = p
	if b.Status == domain.BookingPending {
		b.Status = domain.BookingConfirmed
		f.bookings[p.BookingID] = b
	}
	return p.BookingID, true, nil
}

func (f *fakeStore) CreateReview(ctx context.Context, r domain.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.reviews {
		if existing.ListingID == r.ListingID && existing.ReviewerID == r.ReviewerID {
			return domain.ErrDuplicateReview
		}
	}
	f.reviews = append(f.reviews, r)
	return nil
}

func (f *fakeStore) bookingStatus(id uuid.UUID) domain.BookingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookings[id].Status
}

func (f *fakeStore) paymentStatuses(bookingID uuid.UUID) []domain.PaymentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PaymentStatus
	for _, p := range f.payments {
		if p.BookingID == bookingID {
			out = append(out, p.Status)
		}
	}
	return out
}

// ---- cache fake ----

type fakeCache struct{}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	return false, nil // always miss; caching behavior is covered by the redis adapter tests
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error { return nil }
func (c *fakeCache) Del(ctx context.Context, key string) error                    { return nil }

// ---- gateway fake ----

type fakeGateway struct {
	mu        sync.Mutex
	initErr   error
	verifyErr error
	verifyRes domain.VerifyResult
	initCalls int
	lastInit  domain.InitializePayment
}

func (g *fakeGateway) Initialize(ctx context.Context, req domain.InitializePayment) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls++
	g.lastInit = req
	if g.initErr != nil {
		return "", g.initErr
	}
	return "https://checkout.example/" + req.TxRef, nil
}

func (g *fakeGateway) Verify(ctx context.Context, txRef string) (domain.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return domain.VerifyResult{}, g.verifyErr
	}
	return g.verifyRes, nil
}

// ---- notifier fake ----

type fakeNotifier struct {
	events chan domain.BookingConfirmedEvent
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{events: make(chan domain.BookingConfirmedEvent, 16)}
}

func (n *fakeNotifier) BookingConfirmed(ctx context.Context, ev domain.BookingConfirmedEvent) error {
	n.events <- ev
	return nil
}

func (n *fakeNotifier) waitOne(timeout time.Duration) (domain.BookingConfirmedEvent, bool) {
	select {
	case ev := <-n.events:
		return ev, true
	case <-time.After(timeout):
		return domain.BookingConfirmedEvent{}, false
	}
}

// ---- fixture helpers ----

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedHostGuestListing(f *fakeStore) (host, guest domain.User, listing domain.Listing) {
	host = domain.User{ID: uuid.New(), Role: domain.RoleHost, FirstName: "Hana", LastName: "Hosts", Email: "hana@example.com"}
	guest = domain.User{ID: uuid.New(), Role: domain.RoleGuest, FirstName: "Griet", LastName: "Guest", Email: "griet@example.com"}
	f.users[host.ID] = host
	f.users[guest.ID] = guest

	var err error
	listing, err = domain.NewListing(host.ID, "Canal House", "old town", "Amsterdam", money("120.00"), time.Now())
	if err != nil {
		panic(err)
	}
	f.listings[listing.ID] = listing
	return host, guest, listing
}

func date(s string) time.Time {
	t, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}
