package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tair/stock-ledger/internal/inventory/domain"
)

// GetStockLevelQuery identifies one stock level key
type GetStockLevelQuery struct {
	ItemID      uuid.UUID
	WarehouseID uuid.UUID
	BinID       *uuid.UUID
}

// GetStockLevelHandler handles stock level lookups
type GetStockLevelHandler struct {
	stock domain.StockRepository
}

// NewGetStockLevelHandler creates a new get stock level handler
func NewGetStockLevelHandler(stock domain.StockRepository) *GetStockLevelHandler {
	return &GetStockLevelHandler{stock: stock}
}

// Handle executes the stock level lookup
func (h *GetStockLevelHandler) Handle(ctx context.Context, q GetStockLevelQuery) (*domain.StockLevel, error) {
	level, err := h.stock.FindLevel(ctx, q.ItemID, q.WarehouseID, q.BinID)
	if err != nil {
		return nil, fmt.Errorf("find stock level: %w", err)
	}
	return level, nil
}

// GetAvailableQuantityHandler reports the sellable quantity of a key
type GetAvailableQuantityHandler struct {
	stock domain.StockRepository
}

// NewGetAvailableQuantityHandler creates a new available quantity handler
func NewGetAvailableQuantityHandler(stock domain.StockRepository) *GetAvailableQuantityHandler {
	return &GetAvailableQuantityHandler{stock: stock}
}

// Handle returns on-hand minus reserved. A key that never received stock
// is zero available, not an error.
func (h *GetAvailableQuantityHandler) Handle(ctx context.Context, q GetStockLevelQuery) (decimal.Decimal, error) {
	level, err := h.stock.FindLevel(ctx, q.ItemID, q.WarehouseID, q.BinID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("find stock level: %w", err)
	}
	return level.AvailableQuantity(), nil
}
