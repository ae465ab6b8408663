package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementPair couples one stock level mutation with the ledger row that
// explains it. Every quantity change is persisted through a pair so the
// ledger stays reconstructable: the sum of signed movement quantities for a
// key always equals its current on-hand quantity.
type MovementPair struct {
	Level    *StockLevel
	Movement *StockMovement
	Batch    *Batch // optional, persisted alongside receipt movements
}

// SortField names a movement history sort column
type SortField string

const (
	SortByDate          SortField = "date"
	SortByItemName      SortField = "itemName"
	SortByWarehouseName SortField = "warehouseName"
	SortByQuantity      SortField = "quantity"
	SortByMovementType  SortField = "movementType"
)

// Valid reports whether the sort field is a known column.
func (f SortField) Valid() bool {
	switch f {
	case SortByDate, SortByItemName, SortByWarehouseName, SortByQuantity, SortByMovementType:
		return true
	}
	return false
}

// SortOrder is asc or desc
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// MovementFilter narrows movement history queries. All fields are optional
// and AND-combined.
type MovementFilter struct {
	ItemID          *uuid.UUID
	WarehouseID     *uuid.UUID
	BinID           *uuid.UUID
	MovementType    *MovementType
	BatchID         *uuid.UUID
	ReferenceNumber string // substring match
	FromDate        *time.Time
	ToDate          *time.Time

	Page      int
	PageSize  int
	SortBy    SortField
	SortOrder SortOrder
}

// MovementSummary aggregates the entire filtered set, independent of
// pagination. Issued and transferred totals are magnitudes; adjusted and
// net are signed.
type MovementSummary struct {
	TotalReceived    decimal.Decimal `json:"total_received"`
	TotalIssued      decimal.Decimal `json:"total_issued"`
	TotalAdjusted    decimal.Decimal `json:"total_adjusted"`
	TotalTransferred decimal.Decimal `json:"total_transferred"`
	NetMovement      decimal.Decimal `json:"net_movement"`
}

// StockRepository is the contract for ledger and stock level persistence.
type StockRepository interface {
	// FindLevel returns the stock level for a key, ErrNotFound when the key
	// has never received a movement.
	FindLevel(ctx context.Context, itemID, warehouseID uuid.UUID, binID *uuid.UUID) (*StockLevel, error)

	// ApplyMovements persists every pair in one transaction: level writes
	// are guarded by the optimistic version, movements are appended. Any
	// failure rolls the whole batch back; version mismatches surface as
	// ErrConcurrencyConflict and callers must re-read and retry.
	ApplyMovements(ctx context.Context, pairs []MovementPair) error

	// SaveLevel persists a reservation change (no quantity delta, no paired
	// movement) under the same optimistic version guard.
	SaveLevel(ctx context.Context, level *StockLevel) error

	// ListMovements returns one page of the filtered ledger plus the total
	// filtered count.
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, int64, error)

	// SummarizeMovements aggregates the entire filtered set.
	SummarizeMovements(ctx context.Context, filter MovementFilter) (MovementSummary, error)
}

// WarehouseRepository is the contract for warehouse hierarchy persistence.
type WarehouseRepository interface {
	Save(ctx context.Context, w *Warehouse) error
	FindByID(ctx context.Context, id uuid.UUID) (*Warehouse, error)
	FindByCode(ctx context.Context, code string) (*Warehouse, error)
	// FindAllActive returns enabled leaf warehouses ordered by code.
	FindAllActive(ctx context.Context) ([]Warehouse, error)
	// SaveTree persists a renumbered tree. Implementations must apply all
	// rows atomically under serializable isolation; a partial renumbering
	// corrupts ordering for every descendant.
	SaveTree(ctx context.Context, t *Tree) error
	LoadTree(ctx context.Context) (*Tree, error)
}
