package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tair/stock-ledger/internal/inventory/domain"
	"github.com/tair/stock-ledger/internal/inventory/metrics"
	"github.com/tair/stock-ledger/pkg/logger"
)

// ReserveStockCommand earmarks on-hand quantity for a pending order
type ReserveStockCommand struct {
	ItemID      uuid.UUID
	WarehouseID uuid.UUID
	BinID       *uuid.UUID
	Quantity    decimal.Decimal
}

// ReleaseReservationCommand returns a reservation to the available pool
type ReleaseReservationCommand struct {
	ItemID      uuid.UUID
	WarehouseID uuid.UUID
	BinID       *uuid.UUID
	Quantity    decimal.Decimal
}

// ReserveStockHandler handles reservations. Reservations do not change the
// on-hand quantity, so no ledger movement is written; the level row is
// saved on its own under the usual version guard.
type ReserveStockHandler struct {
	stock   domain.StockRepository
	metrics *metrics.Metrics
}

// NewReserveStockHandler creates a new reserve stock handler
func NewReserveStockHandler(stock domain.StockRepository, m *metrics.Metrics) *ReserveStockHandler {
	return &ReserveStockHandler{stock: stock, metrics: m}
}

// Handle reserves quantity against the key's available stock
func (h *ReserveStockHandler) Handle(ctx context.Context, cmd ReserveStockCommand) (*domain.StockLevel, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: reservation quantity must be positive", domain.ErrValidation)
	}

	var level *domain.StockLevel
	err := withConflictRetry(h.metrics, func() error {
		var err error
		level, err = h.stock.FindLevel(ctx, cmd.ItemID, cmd.WarehouseID, cmd.BinID)
		if err != nil {
			return err
		}
		if err := level.ReserveStock(cmd.Quantity); err != nil {
			return err
		}
		return h.stock.SaveLevel(ctx, level)
	})
	if err != nil {
		return nil, err
	}

	level.ClearEvents()
	logger.Info(ctx).
		Str("item_id", cmd.ItemID.String()).
		Str("warehouse_id", cmd.WarehouseID.String()).
		Str("quantity", cmd.Quantity.String()).
		Str("reserved_total", level.ReservedQuantity.String()).
		Msg("Stock reserved")
	return level, nil
}

// ReleaseReservationHandler releases previously reserved quantity
type ReleaseReservationHandler struct {
	stock   domain.StockRepository
	metrics *metrics.Metrics
}

// NewReleaseReservationHandler creates a new release reservation handler
func NewReleaseReservationHandler(stock domain.StockRepository, m *metrics.Metrics) *ReleaseReservationHandler {
	return &ReleaseReservationHandler{stock: stock, metrics: m}
}

// Handle releases quantity back to the available pool
func (h *ReleaseReservationHandler) Handle(ctx context.Context, cmd ReleaseReservationCommand) (*domain.StockLevel, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: release quantity must be positive", domain.ErrValidation)
	}

	var level *domain.StockLevel
	err := withConflictRetry(h.metrics, func() error {
		var err error
		level, err = h.stock.FindLevel(ctx, cmd.ItemID, cmd.WarehouseID, cmd.BinID)
		if err != nil {
			return err
		}
		if err := level.ReleaseReservation(cmd.Quantity); err != nil {
			return err
		}
		return h.stock.SaveLevel(ctx, level)
	})
	if err != nil {
		return nil, err
	}

	level.ClearEvents()
	logger.Info(ctx).
		Str("item_id", cmd.ItemID.String()).
		Str("warehouse_id", cmd.WarehouseID.String()).
		Str("quantity", cmd.Quantity.String()).
		Str("reserved_total", level.ReservedQuantity.String()).
		Msg("Reservation released")
	return level, nil
}
