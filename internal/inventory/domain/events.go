package domain

import (
	"time"

	"github.com/google/uuid"
)

// Domain event names
const (
	EventWarehouseCreated    = "warehouse.created"
	EventWarehouseDisabled   = "warehouse.disabled"
	EventWarehouseEnabled    = "warehouse.enabled"
	EventStockReceived       = "stock.received"
	EventStockIssued         = "stock.issued"
	EventStockAdjusted       = "stock.adjusted"
	EventStockTransferred    = "stock.transferred"
	EventStockReserved       = "stock.reserved"
	EventReservationReleased = "stock.reservation_released"
)

// Event is a domain event collected in an aggregate's outbox. Aggregate
// methods only append to the outbox; the transaction boundary drains it and
// dispatches after commit, so aggregates stay free of messaging concerns.
type Event struct {
	ID         uuid.UUID
	Name       string
	OccurredAt time.Time
	Fields     map[string]string
}

func newEvent(name string, fields map[string]string) Event {
	return Event{
		ID:         uuid.New(),
		Name:       name,
		OccurredAt: time.Now().UTC(),
		Fields:     fields,
	}
}
