package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tair/stock-ledger/internal/inventory/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// MovementHistoryQuery filters, sorts and pages the movement ledger. All
// filter fields are optional and AND-combined.
type MovementHistoryQuery struct {
	ItemID          *uuid.UUID
	WarehouseID     *uuid.UUID
	BinID           *uuid.UUID
	MovementType    *domain.MovementType
	BatchID         *uuid.UUID
	ReferenceNumber string
	FromDate        *time.Time
	ToDate          *time.Time

	Page      int
	PageSize  int
	SortBy    domain.SortField
	SortOrder domain.SortOrder
}

// MovementHistoryResult is one page of the filtered ledger plus the summary
// over the entire filtered set.
type MovementHistoryResult struct {
	Movements  []domain.StockMovement `json:"movements"`
	TotalCount int64                  `json:"total_count"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalPages int                    `json:"total_pages"`
	Summary    domain.MovementSummary `json:"summary"`
}

// MovementHistoryHandler handles movement history queries
type MovementHistoryHandler struct {
	stock domain.StockRepository
}

// NewMovementHistoryHandler creates a new movement history handler
func NewMovementHistoryHandler(stock domain.StockRepository) *MovementHistoryHandler {
	return &MovementHistoryHandler{stock: stock}
}

// Handle executes the movement history query. An empty match is a
// well-formed empty page, not an error.
func (h *MovementHistoryHandler) Handle(ctx context.Context, q MovementHistoryQuery) (*MovementHistoryResult, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	if q.SortBy == "" {
		q.SortBy = domain.SortByDate
	}
	if !q.SortBy.Valid() {
		return nil, fmt.Errorf("%w: unknown sort field %q", domain.ErrValidation, q.SortBy)
	}
	if q.SortOrder == "" {
		q.SortOrder = domain.SortDesc
	}
	if q.SortOrder != domain.SortAsc && q.SortOrder != domain.SortDesc {
		return nil, fmt.Errorf("%w: unknown sort order %q", domain.ErrValidation, q.SortOrder)
	}
	if q.MovementType != nil && !q.MovementType.Valid() {
		return nil, fmt.Errorf("%w: unknown movement type %q", domain.ErrValidation, *q.MovementType)
	}
	if q.FromDate != nil && q.ToDate != nil && q.ToDate.Before(*q.FromDate) {
		return nil, fmt.Errorf("%w: date range is inverted", domain.ErrValidation)
	}

	filter := domain.MovementFilter{
		ItemID:          q.ItemID,
		WarehouseID:     q.WarehouseID,
		BinID:           q.BinID,
		MovementType:    q.MovementType,
		BatchID:         q.BatchID,
		ReferenceNumber: q.ReferenceNumber,
		FromDate:        q.FromDate,
		ToDate:          q.ToDate,
		Page:            q.Page,
		PageSize:        q.PageSize,
		SortBy:          q.SortBy,
		SortOrder:       q.SortOrder,
	}

	movements, total, err := h.stock.ListMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	// Summary spans the whole filtered set, never just the returned page.
	summary, err := h.stock.SummarizeMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summarize movements: %w", err)
	}

	totalPages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))

	if movements == nil {
		movements = []domain.StockMovement{}
	}
	return &MovementHistoryResult{
		Movements:  movements,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
		Summary:    summary,
	}, nil
}
