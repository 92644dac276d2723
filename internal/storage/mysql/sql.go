package mysql

const insertUserSQL = `
INSERT INTO users (id, role, first_name, last_name, email)
VALUES (?, ?, ?, ?, ?)
`

const getUserSQL = `
SELECT id, role, first_name, last_name, email, created_at
FROM users
WHERE id = ?
`

const insertListingSQL = `
INSERT INTO listings
  (id, host_id, title, description, location, price_per_night, is_available)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

const getListingSQL = `
SELECT id, host_id, title, description, location, price_per_night, is_available, created_at, updated_at
FROM listings
WHERE id = ?
`

const setAvailabilitySQL = `
UPDATE listings SET is_available = ? WHERE id = ?
`

// Single round trip for the listing detail view; the rating aggregate
// rides along on a LEFT JOIN so listings without reviews still resolve.
const getListingViewSQL = `
SELECT
  l.id,
  l.host_id,
  l.title,
  l.description,
  l.location,
  l.price_per_night,
  l.is_available,
  AVG(r.rating),
  COUNT(r.id)
FROM listings l
LEFT JOIN reviews r ON r.listing_id = l.id
WHERE l.id = ?
GROUP BY l.id
`

// Row lock on the listing serializes concurrent bookings for it; the
// overlap check runs under that lock.
const lockListingSQL = `
SELECT is_available FROM listings WHERE id = ? FOR UPDATE
`

// Half-open ranges: a booking ending on day X never collides with one
// starting on day X. Only PENDING and CONFIRMED occupy the calendar.
const overlapExistsSQL = `
SELECT EXISTS (
  SELECT 1
  FROM bookings
  WHERE listing_id = ?
    AND status IN ('PENDING', 'CONFIRMED')
    AND start_date < ?
    AND end_date > ?
)
`

const insertBookingSQL = `
INSERT INTO bookings
  (id, listing_id, guest_id, start_date, end_date, total_price, status)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

const getBookingSQL = `
SELECT id, listing_id, guest_id, start_date, end_date, total_price, status, created_at
FROM bookings
WHERE id = ?
`

// Conditional transition: the WHERE clause loses (zero rows) when the
// booking has already moved on.
const updateBookingStatusSQL = `
UPDATE bookings SET status = ? WHERE id = ? AND status = ?
`

const listBookingsByGuestSQL = `
SELECT id, listing_id, guest_id, start_date, end_date, total_price, status, created_at
FROM bookings
WHERE guest_id = ?
ORDER BY created_at DESC, id DESC
`

const listBookingsByListingSQL = `
SELECT id, listing_id, guest_id, start_date, end_date, total_price, status, created_at
FROM bookings
WHERE listing_id = ?
ORDER BY start_date DESC, id DESC
`

const insertPaymentSQL = `
INSERT INTO payments (id, booking_id, amount, status, trnx_ref)
VALUES (?, ?, ?, ?, ?)
`

const getPaymentByTxRefSQL = `
SELECT id, booking_id, amount, status, trnx_ref, created_at, updated_at
FROM payments
WHERE trnx_ref = ?
`

const markPaymentFailedSQL = `
UPDATE payments SET status = 'FAILED' WHERE trnx_ref = ? AND status = 'PENDING'
`

const lockPaymentSQL = `
SELECT booking_id, status FROM payments WHERE trnx_ref = ? FOR UPDATE
`

const lockBookingStatusSQL = `
SELECT status FROM bookings WHERE id = ? FOR UPDATE
`

const completePaymentSQL = `
UPDATE payments SET status = 'COMPLETED' WHERE trnx_ref = ? AND status = 'PENDING'
`

const confirmBookingSQL = `
UPDATE bookings SET status = 'CONFIRMED' WHERE id = ? AND status = 'PENDING'
`

const insertWatchSQL = `
INSERT INTO watchlist (listing_id, user_id)
VALUES (?, ?)
`

const deleteWatchSQL = `
DELETE FROM watchlist WHERE listing_id = ? AND user_id = ?
`

const listWatchlistSQL = `
SELECT l.id, l.host_id, l.title, l.description, l.location, l.price_per_night, l.is_available, l.created_at, l.updated_at
FROM watchlist w
JOIN listings l ON l.id = w.listing_id
WHERE w.user_id = ?
ORDER BY w.created_at DESC, l.id DESC
`

const insertReviewSQL = `
INSERT INTO reviews (id, listing_id, reviewer_id, rating, comment)
VALUES (?, ?, ?, ?, ?)
`
