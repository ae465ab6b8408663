package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// costScale is the number of decimal places kept on the moving average cost.
const costScale = 6

// StockLevel is the current on-hand/reserved quantity for one
// (item, warehouse, bin) key. It is created lazily on the first movement
// into the key and updated under optimistic concurrency: Version must match
// the stored row or the write is rejected.
type StockLevel struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	// Key uniqueness is enforced by a partial unique index pair created in
	// the repository migration; a plain composite unique index would treat
	// NULL bin ids as distinct rows.
	ItemID           uuid.UUID       `json:"item_id" gorm:"type:uuid;not null;index:idx_stock_levels_key"`
	WarehouseID      uuid.UUID       `json:"warehouse_id" gorm:"type:uuid;not null;index:idx_stock_levels_key"`
	BinID            *uuid.UUID      `json:"bin_id,omitempty" gorm:"type:uuid;index:idx_stock_levels_key"`
	Quantity         decimal.Decimal `json:"quantity" gorm:"type:decimal(20,6);not null"`
	ReservedQuantity decimal.Decimal `json:"reserved_quantity" gorm:"type:decimal(20,6);not null"`
	UnitCost         decimal.Decimal `json:"unit_cost" gorm:"type:decimal(20,6);not null"`
	LastMovementDate time.Time       `json:"last_movement_date"`
	Version          int64           `json:"-" gorm:"not null;default:0"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	events []Event `gorm:"-" json:"-"`
}

// TableName specifies the table name
func (StockLevel) TableName() string {
	return "stock_levels"
}

// NewStockLevel creates a stock level for a key that has no row yet.
// Version stays 0 until the first persisted write.
func NewStockLevel(itemID, warehouseID uuid.UUID, binID *uuid.UUID, initialQty, unitCost decimal.Decimal) (*StockLevel, error) {
	if itemID == uuid.Nil {
		return nil, fmt.Errorf("%w: item id is required", ErrValidation)
	}
	if warehouseID == uuid.Nil {
		return nil, fmt.Errorf("%w: warehouse id is required", ErrValidation)
	}
	if initialQty.IsNegative() {
		return nil, fmt.Errorf("%w: initial quantity cannot be negative", ErrValidation)
	}
	if unitCost.IsNegative() {
		return nil, fmt.Errorf("%w: unit cost cannot be negative", ErrValidation)
	}

	return &StockLevel{
		ID:               uuid.New(),
		ItemID:           itemID,
		WarehouseID:      warehouseID,
		BinID:            binID,
		Quantity:         initialQty,
		ReservedQuantity: decimal.Zero,
		UnitCost:         unitCost,
		LastMovementDate: time.Now().UTC(),
	}, nil
}

// AvailableQuantity returns on-hand minus reserved quantity.
func (s *StockLevel) AvailableQuantity() decimal.Decimal {
	return s.Quantity.Sub(s.ReservedQuantity)
}

// ReceiveStock increases on-hand quantity and recomputes the moving
// weighted average unit cost.
func (s *StockLevel) ReceiveStock(qty, unitCost decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: receive quantity must be positive", ErrValidation)
	}
	if unitCost.IsNegative() {
		return fmt.Errorf("%w: unit cost cannot be negative", ErrValidation)
	}

	oldValue := s.Quantity.Mul(s.UnitCost)
	newValue := qty.Mul(unitCost)
	newQty := s.Quantity.Add(qty)

	s.UnitCost = oldValue.Add(newValue).DivRound(newQty, costScale)
	s.Quantity = newQty
	s.LastMovementDate = time.Now().UTC()

	s.record(EventStockReceived, map[string]string{
		"item_id":      s.ItemID.String(),
		"warehouse_id": s.WarehouseID.String(),
		"quantity":     qty.String(),
		"new_quantity": s.Quantity.String(),
	})
	return nil
}

// IssueStock decreases on-hand quantity. It hard-fails when the requested
// quantity exceeds what is available; callers that want partial issues must
// clamp before calling (the sale consumer does).
func (s *StockLevel) IssueStock(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: issue quantity must be positive", ErrValidation)
	}
	if qty.GreaterThan(s.AvailableQuantity()) {
		return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientStock, qty, s.AvailableQuantity())
	}

	s.Quantity = s.Quantity.Sub(qty)
	s.LastMovementDate = time.Now().UTC()

	s.record(EventStockIssued, map[string]string{
		"item_id":      s.ItemID.String(),
		"warehouse_id": s.WarehouseID.String(),
		"quantity":     qty.String(),
		"new_quantity": s.Quantity.String(),
	})
	return nil
}

// AdjustStock applies a signed correction to on-hand quantity without
// touching the unit cost. Negative adjustments hard-fail when they exceed
// the available quantity.
func (s *StockLevel) AdjustStock(delta decimal.Decimal) error {
	if delta.IsZero() {
		return fmt.Errorf("%w: adjustment quantity cannot be zero", ErrValidation)
	}
	if delta.IsNegative() && delta.Neg().GreaterThan(s.AvailableQuantity()) {
		return fmt.Errorf("%w: adjustment %s exceeds available %s", ErrInsufficientStock, delta, s.AvailableQuantity())
	}

	s.Quantity = s.Quantity.Add(delta)
	s.LastMovementDate = time.Now().UTC()

	s.record(EventStockAdjusted, map[string]string{
		"item_id":      s.ItemID.String(),
		"warehouse_id": s.WarehouseID.String(),
		"quantity":     delta.String(),
		"new_quantity": s.Quantity.String(),
	})
	return nil
}

// ReserveStock increases the reserved quantity. Reservations can never
// exceed on-hand quantity.
func (s *StockLevel) ReserveStock(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: reserve quantity must be positive", ErrValidation)
	}
	if s.ReservedQuantity.Add(qty).GreaterThan(s.Quantity) {
		return fmt.Errorf("%w: reserving %s would exceed on-hand %s", ErrInsufficientStock, qty, s.Quantity)
	}

	s.ReservedQuantity = s.ReservedQuantity.Add(qty)

	s.record(EventStockReserved, map[string]string{
		"item_id":      s.ItemID.String(),
		"warehouse_id": s.WarehouseID.String(),
		"quantity":     qty.String(),
	})
	return nil
}

// ReleaseReservation decreases the reserved quantity.
func (s *StockLevel) ReleaseReservation(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: release quantity must be positive", ErrValidation)
	}
	if qty.GreaterThan(s.ReservedQuantity) {
		return fmt.Errorf("%w: releasing %s exceeds reserved %s", ErrValidation, qty, s.ReservedQuantity)
	}

	s.ReservedQuantity = s.ReservedQuantity.Sub(qty)

	s.record(EventReservationReleased, map[string]string{
		"item_id":      s.ItemID.String(),
		"warehouse_id": s.WarehouseID.String(),
		"quantity":     qty.String(),
	})
	return nil
}

// Events returns the collected outbox events.
func (s *StockLevel) Events() []Event {
	return s.events
}

// ClearEvents empties the outbox, called by the transaction boundary after
// dispatch.
func (s *StockLevel) ClearEvents() {
	s.events = nil
}

func (s *StockLevel) record(name string, fields map[string]string) {
	s.events = append(s.events, newEvent(name, fields))
}
