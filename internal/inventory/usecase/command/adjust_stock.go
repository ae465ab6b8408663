package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tair/stock-ledger/internal/inventory/domain"
	"github.com/tair/stock-ledger/internal/inventory/metrics"
	"github.com/tair/stock-ledger/pkg/logger"
)

// AdjustStockCommand corrects the on-hand quantity of one key by a signed
// delta
type AdjustStockCommand struct {
	ItemID          uuid.UUID
	WarehouseID     uuid.UUID
	BinID           *uuid.UUID
	Quantity        decimal.Decimal // signed, non-zero
	ReferenceNumber string
	AdjustedBy      string
}

// AdjustStockHandler handles stock adjustments. Adjustments never clamp:
// removing more than is available is a hard ErrInsufficientStock.
type AdjustStockHandler struct {
	stock   domain.StockRepository
	metrics *metrics.Metrics
}

// NewAdjustStockHandler creates a new adjust stock handler
func NewAdjustStockHandler(stock domain.StockRepository, m *metrics.Metrics) *AdjustStockHandler {
	return &AdjustStockHandler{stock: stock, metrics: m}
}

// Handle executes the adjustment
func (h *AdjustStockHandler) Handle(ctx context.Context, cmd AdjustStockCommand) (*domain.StockLevel, error) {
	if cmd.Quantity.IsZero() {
		return nil, fmt.Errorf("%w: adjustment quantity cannot be zero", domain.ErrValidation)
	}

	ref := domain.MovementRef{Type: "StockAdjustment", Number: cmd.ReferenceNumber}

	var level *domain.StockLevel
	err := withConflictRetry(h.metrics, func() error {
		var err error
		level, err = h.stock.FindLevel(ctx, cmd.ItemID, cmd.WarehouseID, cmd.BinID)
		if errors.Is(err, domain.ErrNotFound) {
			// Positive adjustments may create the key lazily.
			if cmd.Quantity.IsNegative() {
				return err
			}
			level, err = domain.NewStockLevel(cmd.ItemID, cmd.WarehouseID, cmd.BinID, decimal.Zero, decimal.Zero)
		}
		if err != nil {
			return err
		}

		if err := level.AdjustStock(cmd.Quantity); err != nil {
			return err
		}
		movement, err := domain.NewAdjustment(level, cmd.Quantity, ref, cmd.AdjustedBy)
		if err != nil {
			return err
		}
		return h.stock.ApplyMovements(ctx, []domain.MovementPair{{Level: level, Movement: movement}})
	})
	if err != nil {
		return nil, err
	}

	h.metrics.RecordMovement(string(domain.MovementTypeAdjust))
	level.ClearEvents()

	logger.Info(ctx).
		Str("item_id", cmd.ItemID.String()).
		Str("warehouse_id", cmd.WarehouseID.String()).
		Str("delta", cmd.Quantity.String()).
		Str("new_quantity", level.Quantity.String()).
		Msg("Stock adjusted")
	return level, nil
}
