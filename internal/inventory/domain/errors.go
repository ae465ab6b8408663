package domain

import "errors"

// Sentinel errors for the inventory domain. Repositories and use cases
// return these (optionally wrapped) so callers can classify failures with
// errors.Is.
//
// - ErrValidation: malformed input, rejected synchronously, never retried
// - ErrNotFound: item/warehouse/stock level does not exist
// - ErrConcurrencyConflict: optimistic version check failed, retryable
// - ErrInsufficientStock: issue or reservation exceeds available quantity
// - ErrStructuralInvariant: warehouse tree rule violated, always a hard reject
// - ErrInvalidState: entity already in the requested state
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrStructuralInvariant = errors.New("structural invariant violation")
	ErrInvalidState        = errors.New("invalid state")
)
