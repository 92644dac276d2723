package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"staybook/internal/adapters/observability"
	"staybook/internal/app"
	"staybook/internal/domain"
)

type Handlers struct {
	Listings *app.ListingService
	Bookings *app.BookingService
	Payments *app.PaymentService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	// gateway callback endpoints carry no user identity
	s.mux.Get("/v1/payments/verify/{tx_ref}", h.verifyPayment)
	s.mux.Get("/v1/payments/{tx_ref}", h.getPayment)
	s.mux.Get("/v1/listings/{id}", h.getListing)

	s.mux.Group(func(m chi.Router) {
		m.Use(RequireUser)
		m.Post("/v1/listings", h.createListing)
		m.Post("/v1/listings/{id}/availability", h.setAvailability)
		m.Post("/v1/listings/{id}/book", h.createBooking)
		m.Post("/v1/listings/{id}/reviews", h.submitReview)
		m.Post("/v1/listings/{id}/watchlist", h.watchListing)
		m.Delete("/v1/listings/{id}/watchlist", h.unwatchListing)
		m.Get("/v1/watchlist", h.getWatchlist)
		m.Get("/v1/listings/{id}/bookings", h.listListingBookings)
		m.Get("/v1/bookings", h.listMyBookings)
		m.Get("/v1/bookings/{id}", h.getBooking)
		m.Post("/v1/bookings/{id}/approve", h.approveBooking)
		m.Post("/v1/bookings/{id}/decline", h.declineBooking)
		m.Post("/v1/bookings/{id}/cancel", h.cancelBooking)
		m.Post("/v1/payments/initiate", h.initiatePayment)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrOverlap), errors.Is(err, domain.ErrDuplicateReview):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrGatewayRejected):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrGatewayUnavailable):
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "payment gateway is unavailable")
	default:
		log.Error().Err(err).Msg("unhandled request error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// ---- wire DTOs ----

type listingResp struct {
	ID            string   `json:"id"`
	HostID        string   `json:"host_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Location      string   `json:"location"`
	PricePerNight string   `json:"price_per_night"`
	IsAvailable   bool     `json:"is_available"`
	AverageRating *float64 `json:"average_rating,omitempty"`
	ReviewCount   int      `json:"review_count"`
}

func toListingResp(l domain.Listing) listingResp {
	return listingResp{
		ID: l.ID.String(), HostID: l.HostID.String(), Title: l.Title,
		Description: l.Description, Location: l.Location,
		PricePerNight: l.PricePerNight.StringFixed(2), IsAvailable: l.IsAvailable,
	}
}

func toListingViewResp(lv domain.ListingView) listingResp {
	return listingResp{
		ID: lv.ID.String(), HostID: lv.HostID.String(), Title: lv.Title,
		Description: lv.Description, Location: lv.Location,
		PricePerNight: lv.PricePerNight.StringFixed(2), IsAvailable: lv.IsAvailable,
		AverageRating: lv.AverageRating, ReviewCount: lv.ReviewCount,
	}
}

type bookingResp struct {
	ID         string `json:"id"`
	ListingID  string `json:"listing_id"`
	GuestID    string `json:"guest_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	TotalPrice string `json:"total_price"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

func toBookingResp(b domain.Booking) bookingResp {
	return bookingResp{
		ID:         b.ID.String(),
		ListingID:  b.ListingID.String(),
		GuestID:    b.GuestID.String(),
		StartDate:  b.StartDate.Format(domain.DateLayout),
		EndDate:    b.EndDate.Format(domain.DateLayout),
		TotalPrice: b.TotalPrice.StringFixed(2),
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
	}
}

type paymentResp struct {
	ID        string `json:"id"`
	BookingID string `json:"booking_id"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
	TxRef     string `json:"tx_ref"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toPaymentResp(p domain.Payment) paymentResp {
	return paymentResp{
		ID:        p.ID.String(),
		BookingID: p.BookingID.String(),
		Amount:    p.Amount.StringFixed(2),
		Status:    string(p.Status),
		TxRef:     p.TxRef,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

// ---- listings ----

func (h *Handlers) createListing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title         string `json:"title"`
		Description   string `json:"description"`
		Location      string `json:"location"`
		PricePerNight string `json:"price_per_night"`
	}
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	price, err := decimal.NewFromString(req.PricePerNight)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "price_per_night must be a decimal string")
		return
	}
	l, err := h.Listings.CreateListing(r.Context(), userID(r), req.Title, req.Description, req.Location, price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListingResp(l))
}

func (h *Handlers) getListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a UUID")
		return
	}
	lv, err := h.Listings.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	etag, body := calcETagAndBody(toListingViewResp(lv))
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listing body")
	}
}

func (h *Handlers) setAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a UUID")
		return
	}
	var req struct {
		IsAvailable bool `json:"is_available"`
	}
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	l, err := h.Listings.SetAvailability(r.Context(), userID(r), id, req.IsAvailable)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResp(l))
}

func (h *Handlers) watchListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a UUID")
		return
	}
	if err := h.Listings.Watch(r.Context(), userID(r), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"detail": "Listing added to watchlist."})
}

func (h *Handlers) unwatchListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a UUID")
		return
	}
	if err := h.Listings.Unwatch(r.Context(), userID(r), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"detail": "Listing removed from watchlist."})
}

func (h *Handlers) getWatchlist(w http.ResponseWriter, r *http.Request) {
	ls, err := h.Listings.Watchlist(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]listingResp, 0, len(ls))
	for _, l := range ls {
		out = append(out, toListingResp(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handlers) submitReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a UUID")
		return
	}
	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	rv, err := h.Listings.SubmitReview(r.Context(), userID(r), id, req.Rating, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         rv.ID.String(),
		"listing_id": rv.ListingID.String(),
		"rating":     rv.Rating,
		"comment":    rv.Comment,
		"created_at": rv.CreatedAt.Format(time.RFC3339),
	})
}

// ---- bookings ----

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a UUID")
		return
	}
	var req struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	start, err := domain.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := domain.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.Bookings.CreateBooking(r.Context(), userID(r), id, start, end)
	if err != nil {
		if errors.Is(err, domain.ErrOverlap) {
			observability.ObserveBooking("rejected_overlap")
		}
		writeError(w, err)
		return
	}
	observability.ObserveBooking("created")
	writeJSON(w, http.StatusCreated, toBookingResp(b))
}

func (h *Handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a UUID")
		return
	}
	b, err := h.Bookings.GetBooking(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResp(b))
}

func (h *Handlers) listMyBookings(w http.ResponseWriter, r *http.Request) {
	bs, err := h.Bookings.ListForGuest(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]bookingResp, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingResp(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handlers) listListingBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a UUID")
		return
	}
	bs, err := h.Bookings.ListForListing(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]bookingResp, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingResp(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handlers) approveBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "confirmed", h.Bookings.Approve)
}

func (h *Handlers) declineBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "declined", h.Bookings.Decline)
}

func (h *Handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "canceled", h.Bookings.Cancel)
}

func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, event string,
	op func(ctx context.Context, actorID, bookingID uuid.UUID) (domain.Booking, error)) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "id must be a UUID")
		return
	}
	b, err := op(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	observability.ObserveBooking(event)
	writeJSON(w, http.StatusOK, toBookingResp(b))
}

// ---- payments ----

func (h *Handlers) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID string `json:"booking_id"`
		Email     string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "booking_id must be a UUID")
		return
	}
	checkoutURL, err := h.Payments.Initiate(r.Context(), bookingID, req.Email)
	if err != nil {
		observability.ObservePayment("initiate_failed")
		writeError(w, err)
		return
	}
	observability.ObservePayment("initiated")
	writeJSON(w, http.StatusCreated, map[string]string{"payment_url": checkoutURL})
}

func (h *Handlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	txRef := chi.URLParam(r, "tx_ref")
	out, err := h.Payments.Verify(r.Context(), txRef)
	if err != nil {
		observability.ObservePayment("verify_failed")
		writeError(w, err)
		return
	}
	observability.ObservePayment("verified")
	writeJSON(w, http.StatusOK, map[string]string{
		"booking_id": out.BookingID.String(),
		"message":    out.Message,
	})
}

func (h *Handlers) getPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payments.GetPayment(r.Context(), chi.URLParam(r, "tx_ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResp(p))
}
