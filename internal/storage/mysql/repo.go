package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"staybook/internal/domain"
)

const dupEntryErrNo = 1062

func isDupEntry(err error) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == dupEntryErrNo
}

func scanDecimal(raw []byte) (decimal.Decimal, error) {
	return decimal.NewFromString(string(raw))
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ----- users -----

func (r *Repo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, insertUserSQL,
		u.ID.String(), string(u.Role), u.FirstName, u.LastName, u.Email)
	if isDupEntry(err) {
		return fmt.Errorf("%w: email already registered", domain.ErrValidation)
	}
	return err
}

func (r *Repo) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var u domain.User
	var uid, role string
	err := r.db.QueryRowContext(ctx, getUserSQL, id.String()).Scan(
		&uid, &role, &u.FirstName, &u.LastName, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	u.ID, err = uuid.Parse(uid)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}

// ----- listings -----

func (r *Repo) CreateListing(ctx context.Context, l domain.Listing) error {
	_, err := r.db.ExecContext(ctx, insertListingSQL,
		l.ID.String(), l.HostID.String(), l.Title, l.Description, l.Location,
		l.PricePerNight.String(), l.IsAvailable)
	return err
}

func (r *Repo) GetListing(ctx context.Context, id uuid.UUID) (domain.Listing, error) {
	return scanListing(r.db.QueryRowContext(ctx, getListingSQL, id.String()))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (domain.Listing, error) {
	var l domain.Listing
	var lid, hid string
	var desc sql.NullString
	var price []byte
	err := row.Scan(&lid, &hid, &l.Title, &desc, &l.Location, &price,
		&l.IsAvailable, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.Listing{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Listing{}, err
	}
	if l.ID, err = uuid.Parse(lid); err != nil {
		return domain.Listing{}, err
	}
	if l.HostID, err = uuid.Parse(hid); err != nil {
		return domain.Listing{}, err
	}
	l.Description = desc.String
	if l.PricePerNight, err = scanDecimal(price); err != nil {
		return domain.Listing{}, err
	}
	return l, nil
}

func (r *Repo) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	res, err := r.db.ExecContext(ctx, setAvailabilitySQL, available, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// zero rows also happens when the value was already set; tell them apart
		if _, err := r.GetListing(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) GetListingView(ctx context.Context, id uuid.UUID) (domain.ListingView, error) {
	var lv domain.ListingView
	var lid, hid string
	var desc sql.NullString
	var price []byte
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, getListingViewSQL, id.String()).Scan(
		&lid, &hid, &lv.Title, &desc, &lv.Location, &price,
		&lv.IsAvailable, &avg, &lv.ReviewCount)
	if err == sql.ErrNoRows {
		return domain.ListingView{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ListingView{}, err
	}
	if lv.ID, err = uuid.Parse(lid); err != nil {
		return domain.ListingView{}, err
	}
	if lv.HostID, err = uuid.Parse(hid); err != nil {
		return domain.ListingView{}, err
	}
	lv.Description = desc.String
	if lv.PricePerNight, err = scanDecimal(price); err != nil {
		return domain.ListingView{}, err
	}
	if avg.Valid {
		a := avg.Float64
		lv.AverageRating = &a
	}
	return lv, nil
}

// ----- watchlist -----

func (r *Repo) AddToWatchlist(ctx context.Context, listingID, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, insertWatchSQL, listingID.String(), userID.String())
	if isDupEntry(err) {
		return fmt.Errorf("%w: listing already in watchlist", domain.ErrValidation)
	}
	return err
}

func (r *Repo) RemoveFromWatchlist(ctx context.Context, listingID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, deleteWatchSQL, listingID.String(), userID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: listing not in watchlist", domain.ErrValidation)
	}
	return nil
}

func (r *Repo) ListWatchlist(ctx context.Context, userID uuid.UUID) ([]domain.Listing, error) {
	rows, err := r.db.QueryContext(ctx, listWatchlistSQL, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ----- bookings -----

// CreateBooking serializes on the listing row so two overlapping requests
// cannot both pass the availability check. The loser of the race sees the
// winner's committed row in the EXISTS probe and fails with ErrOverlap.
func (r *Repo) CreateBooking(ctx context.Context, b domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var available bool
	err = tx.QueryRowContext(ctx, lockListingSQL, b.ListingID.String()).Scan(&available)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if !available {
		return fmt.Errorf("%w: listing is not available", domain.ErrValidation)
	}

	var taken bool
	err = tx.QueryRowContext(ctx, overlapExistsSQL,
		b.ListingID.String(),
		b.EndDate.Format(domain.DateLayout),
		b.StartDate.Format(domain.DateLayout),
	).Scan(&taken)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: the requested dates are already booked", domain.ErrOverlap)
	}

	_, err = tx.ExecContext(ctx, insertBookingSQL,
		b.ID.String(), b.ListingID.String(), b.GuestID.String(),
		b.StartDate.Format(domain.DateLayout), b.EndDate.Format(domain.DateLayout),
		b.TotalPrice.String(), string(b.Status))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return scanBookingRow(r.db.QueryRowContext(ctx, getBookingSQL, id.String()))
}

func scanBookingRow(row *sql.Row) (domain.Booking, error) {
	var b domain.Booking
	var bid, lid, gid, status string
	var total []byte
	err := row.Scan(&bid, &lid, &gid, &b.StartDate, &b.EndDate, &total, &status, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.Booking{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return fillBooking(b, bid, lid, gid, total, status)
}

func fillBooking(b domain.Booking, bid, lid, gid string, total []byte, status string) (domain.Booking, error) {
	var err error
	if b.ID, err = uuid.Parse(bid); err != nil {
		return domain.Booking{}, err
	}
	if b.ListingID, err = uuid.Parse(lid); err != nil {
		return domain.Booking{}, err
	}
	if b.GuestID, err = uuid.Parse(gid); err != nil {
		return domain.Booking{}, err
	}
	if b.TotalPrice, err = scanDecimal(total); err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	return b, nil
}

func (r *Repo) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) error {
	res, err := r.db.ExecContext(ctx, updateBookingStatusSQL,
		string(to), id.String(), string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		b, err := r.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: booking is %s", domain.ErrInvalidTransition, b.Status)
	}
	return nil
}

func (r *Repo) ListBookingsByGuest(ctx context.Context, guestID uuid.UUID) ([]domain.Booking, error) {
	return r.listBookings(ctx, listBookingsByGuestSQL, guestID)
}

func (r *Repo) ListBookingsByListing(ctx context.Context, listingID uuid.UUID) ([]domain.Booking, error) {
	return r.listBookings(ctx, listBookingsByListingSQL, listingID)
}

func (r *Repo) listBookings(ctx context.Context, query string, key uuid.UUID) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, key.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		var bid, lid, gid, status string
		var total []byte
		if err := rows.Scan(&bid, &lid, &gid, &b.StartDate, &b.EndDate, &total, &status, &b.CreatedAt); err != nil {
			return nil, err
		}
		b, err := fillBooking(b, bid, lid, gid, total, status)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ----- payments -----

func (r *Repo) CreatePayment(ctx context.Context, p domain.Payment) error {
	_, err := r.db.ExecContext(ctx, insertPaymentSQL,
		p.ID.String(), p.BookingID.String(), p.Amount.String(), string(p.Status), p.TxRef)
	return err
}

func (r *Repo) GetPaymentByTxRef(ctx context.Context, txRef string) (domain.Payment, error) {
	var p domain.Payment
	var pid, bid, status string
	var amount []byte
	err := r.db.QueryRowContext(ctx, getPaymentByTxRefSQL, txRef).Scan(
		&pid, &bid, &amount, &status, &p.TxRef, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.Payment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}
	if p.ID, err = uuid.Parse(pid); err != nil {
		return domain.Payment{}, err
	}
	if p.BookingID, err = uuid.Parse(bid); err != nil {
		return domain.Payment{}, err
	}
	if p.Amount, err = scanDecimal(amount); err != nil {
		return domain.Payment{}, err
	}
	p.Status = domain.PaymentStatus(status)
	return p, nil
}

func (r *Repo) MarkPaymentFailed(ctx context.Context, txRef string) error {
	res, err := r.db.ExecContext(ctx, markPaymentFailedSQL, txRef)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Completed stays Completed; only a missing row is an error here
		if _, err := r.GetPaymentByTxRef(ctx, txRef); err != nil {
			return err
		}
	}
	return nil
}

// CompletePaymentConfirmBooking locks the payment row, so duplicate
// verification callbacks line up behind the first and observe Completed.
func (r *Repo) CompletePaymentConfirmBooking(ctx context.Context, txRef string) (uuid.UUID, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, false, err
	}
	defer tx.Rollback()

	var bid, status string
	err = tx.QueryRowContext(ctx, lockPaymentSQL, txRef).Scan(&bid, &status)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, domain.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	bookingID, err := uuid.Parse(bid)
	if err != nil {
		return uuid.Nil, false, err
	}

	switch domain.PaymentStatus(status) {
	case domain.PaymentCompleted:
		return bookingID, false, tx.Commit()
	case domain.PaymentFailed:
		return uuid.Nil, false, fmt.Errorf("%w: payment %s already failed", domain.ErrInvalidState, txRef)
	}

	// A booking that was declined or canceled after checkout opened must
	// not be settled against; the payment stays Pending for reconciliation.
	var bookingStatus string
	if err := tx.QueryRowContext(ctx, lockBookingStatusSQL, bookingID.String()).Scan(&bookingStatus); err != nil {
		return uuid.Nil, false, err
	}
	switch domain.BookingStatus(bookingStatus) {
	case domain.BookingPending, domain.BookingConfirmed:
	default:
		return uuid.Nil, false, fmt.Errorf("%w: booking %s is %s", domain.ErrInvalidState, bookingID, bookingStatus)
	}

	if _, err := tx.ExecContext(ctx, completePaymentSQL, txRef); err != nil {
		return uuid.Nil, false, err
	}
	// no-op when the booking is already Confirmed (host approval path)
	if _, err := tx.ExecContext(ctx, confirmBookingSQL, bookingID.String()); err != nil {
		return uuid.Nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, false, err
	}
	return bookingID, true, nil
}

// ----- reviews -----

func (r *Repo) CreateReview(ctx context.Context, rv domain.Review) error {
	_, err := r.db.ExecContext(ctx, insertReviewSQL,
		rv.ID.String(), rv.ListingID.String(), rv.ReviewerID.String(), rv.Rating, rv.Comment)
	if isDupEntry(err) {
		return fmt.Errorf("%w: listing already reviewed", domain.ErrDuplicateReview)
	}
	return err
}
