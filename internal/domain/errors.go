package domain

import "errors"

// Error kinds surfaced by the usecases. Callers match them with errors.Is;
// the delivery layer maps them to transport responses.
var (
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("invalid credentials")
	ErrForbidden        = errors.New("email address not verified")
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrValidation       = errors.New("validation failed")
)
