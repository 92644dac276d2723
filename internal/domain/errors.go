package domain

import "errors"

// Sentinel errors shared by all layers. Services wrap them with context via
// fmt.Errorf("...: %w", err); the HTTP layer classifies with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrOverlap           = errors.New("dates overlap an existing booking")
	ErrDuplicateReview   = errors.New("listing already reviewed by this guest")

	// Payment gateway outcomes. Unavailable means we never got a usable
	// answer (transport error, timeout, 5xx); Rejected means the gateway
	// answered and declined.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected the transaction")
)
