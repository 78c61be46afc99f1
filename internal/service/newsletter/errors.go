package newsletter

import "errors"

// Sentinel errors for the newsletter service layer.
var (
	// ErrNotFound covers confirm/unsubscribe tokens that do not resolve.
	// Used, never-issued, and expired tokens are deliberately
	// indistinguishable to the caller.
	ErrNotFound = errors.New("subscriber not found")

	// ErrInvalidEmail is returned before any side effect when the submitted
	// address cannot be parsed.
	ErrInvalidEmail = errors.New("invalid email address")
)
