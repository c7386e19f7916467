package shared

import "errors"

// Error taxonomy shared by services and mapped to HTTP status codes by httpx.
var (
	// ErrUnauthorized indicates the request carries no usable identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the identity lacks the capability or entity access.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates a referenced document, account or journal is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates malformed input such as a bad date range.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates a unique code collision or a replayed request.
	ErrConflict = errors.New("conflict")
)
