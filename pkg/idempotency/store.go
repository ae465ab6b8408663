package idempotency

import "context"

// Store tracks processed integration event identifiers so redelivered
// events are applied at most once.
type Store interface {
	// HasProcessed reports whether the event id was already recorded.
	HasProcessed(ctx context.Context, eventID string) (bool, error)
	// MarkProcessed records the event id.
	MarkProcessed(ctx context.Context, eventID string) error
}
