package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType classifies a stock movement
type MovementType string

const (
	MovementTypeReceive  MovementType = "receive"
	MovementTypeIssue    MovementType = "issue"
	MovementTypeAdjust   MovementType = "adjust"
	MovementTypeTransfer MovementType = "transfer"
)

// Valid reports whether the movement type is one of the known values.
func (t MovementType) Valid() bool {
	switch t {
	case MovementTypeReceive, MovementTypeIssue, MovementTypeAdjust, MovementTypeTransfer:
		return true
	}
	return false
}

// StockMovement is one immutable row of the ledger. Quantity is signed:
// receipts and positive adjustments are positive, issues and transfer-out
// legs are negative. Rows are only ever appended; corrections are new
// compensating movements. Item and warehouse names are denormalized at
// write time so history queries can sort on them without joins.
type StockMovement struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	ItemID          uuid.UUID       `json:"item_id" gorm:"type:uuid;not null;index"`
	ItemName        string          `json:"item_name"`
	WarehouseID     uuid.UUID       `json:"warehouse_id" gorm:"type:uuid;not null;index"`
	WarehouseName   string          `json:"warehouse_name"`
	BinID           *uuid.UUID      `json:"bin_id,omitempty" gorm:"type:uuid"`
	MovementType    MovementType    `json:"movement_type" gorm:"type:varchar(20);not null;index"`
	Quantity        decimal.Decimal `json:"quantity" gorm:"type:decimal(20,6);not null"`
	UnitCost        decimal.Decimal `json:"unit_cost" gorm:"type:decimal(20,6);not null"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceNumber string          `json:"reference_number" gorm:"index"`
	BatchID         *uuid.UUID      `json:"batch_id,omitempty" gorm:"type:uuid"`
	CreatedBy       string          `json:"created_by"`
	MovementDate    time.Time       `json:"movement_date" gorm:"not null;index"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TableName specifies the table name
func (StockMovement) TableName() string {
	return "stock_movements"
}

// Batch carries manufacture/expiry dates for stock received under a batch
// number.
type Batch struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	BatchNumber     string     `json:"batch_number" gorm:"not null;index"`
	ItemID          uuid.UUID  `json:"item_id" gorm:"type:uuid;not null;index"`
	ManufactureDate *time.Time `json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// TableName specifies the table name
func (Batch) TableName() string {
	return "stock_batches"
}

// MovementRef links a movement back to its originating document.
type MovementRef struct {
	Type   string // e.g. "PurchaseOrder", "Sale", "StockAdjustment"
	Number string
}

func newMovement(level *StockLevel, movementType MovementType, signedQty, unitCost decimal.Decimal, ref MovementRef, createdBy string, batchID *uuid.UUID) *StockMovement {
	now := time.Now().UTC()
	return &StockMovement{
		ID:              uuid.New(),
		ItemID:          level.ItemID,
		WarehouseID:     level.WarehouseID,
		BinID:           level.BinID,
		MovementType:    movementType,
		Quantity:        signedQty,
		UnitCost:        unitCost,
		ReferenceType:   ref.Type,
		ReferenceNumber: ref.Number,
		BatchID:         batchID,
		CreatedBy:       createdBy,
		MovementDate:    now,
	}
}

// NewReceipt records stock received into the level's key. Quantity is
// stored positive.
func NewReceipt(level *StockLevel, qty, unitCost decimal.Decimal, ref MovementRef, createdBy string, batchID *uuid.UUID) (*StockMovement, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: receipt quantity must be positive", ErrValidation)
	}
	return newMovement(level, MovementTypeReceive, qty, unitCost, ref, createdBy, batchID), nil
}

// NewIssue records stock issued from the level's key. Quantity is stored
// negative for reporting purposes.
func NewIssue(level *StockLevel, qty decimal.Decimal, ref MovementRef, createdBy string) (*StockMovement, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: issue quantity must be positive", ErrValidation)
	}
	return newMovement(level, MovementTypeIssue, qty.Neg(), level.UnitCost, ref, createdBy, nil), nil
}

// NewAdjustment records a signed correction. The sign of delta is kept
// as-is.
func NewAdjustment(level *StockLevel, delta decimal.Decimal, ref MovementRef, createdBy string) (*StockMovement, error) {
	if delta.IsZero() {
		return nil, fmt.Errorf("%w: adjustment quantity cannot be zero", ErrValidation)
	}
	return newMovement(level, MovementTypeAdjust, delta, level.UnitCost, ref, createdBy, nil), nil
}

// NewTransfer records one leg of a transfer: negative for the source key,
// positive for the destination key. Both legs share the same reference.
func NewTransfer(level *StockLevel, signedQty decimal.Decimal, ref MovementRef, createdBy string) (*StockMovement, error) {
	if signedQty.IsZero() {
		return nil, fmt.Errorf("%w: transfer quantity cannot be zero", ErrValidation)
	}
	return newMovement(level, MovementTypeTransfer, signedQty, level.UnitCost, ref, createdBy, nil), nil
}
