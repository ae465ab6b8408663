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

// TransferStockCommand moves quantity between two keys of the same item
type TransferStockCommand struct {
	ItemID          uuid.UUID
	FromWarehouseID uuid.UUID
	FromBinID       *uuid.UUID
	ToWarehouseID   uuid.UUID
	ToBinID         *uuid.UUID
	Quantity        decimal.Decimal
	ReferenceNumber string
	TransferredBy   string
}

// TransferStockHandler moves stock between keys as two transfer legs in one
// transaction. Transfers never clamp: an insufficient source is a hard
// ErrInsufficientStock.
type TransferStockHandler struct {
	stock   domain.StockRepository
	metrics *metrics.Metrics
}

// NewTransferStockHandler creates a new transfer stock handler
func NewTransferStockHandler(stock domain.StockRepository, m *metrics.Metrics) *TransferStockHandler {
	return &TransferStockHandler{stock: stock, metrics: m}
}

// Handle executes the transfer
func (h *TransferStockHandler) Handle(ctx context.Context, cmd TransferStockCommand) error {
	if !cmd.Quantity.IsPositive() {
		return fmt.Errorf("%w: transfer quantity must be positive", domain.ErrValidation)
	}
	if cmd.FromWarehouseID == cmd.ToWarehouseID && binsEqual(cmd.FromBinID, cmd.ToBinID) {
		return fmt.Errorf("%w: source and destination are the same key", domain.ErrValidation)
	}

	ref := domain.MovementRef{Type: "StockTransfer", Number: cmd.ReferenceNumber}

	err := withConflictRetry(h.metrics, func() error {
		source, err := h.stock.FindLevel(ctx, cmd.ItemID, cmd.FromWarehouseID, cmd.FromBinID)
		if err != nil {
			return err
		}

		dest, err := h.stock.FindLevel(ctx, cmd.ItemID, cmd.ToWarehouseID, cmd.ToBinID)
		if errors.Is(err, domain.ErrNotFound) {
			dest, err = domain.NewStockLevel(cmd.ItemID, cmd.ToWarehouseID, cmd.ToBinID, decimal.Zero, decimal.Zero)
		}
		if err != nil {
			return err
		}

		// The destination inherits the source's moving average cost.
		unitCost := source.UnitCost

		if err := source.IssueStock(cmd.Quantity); err != nil {
			return err
		}
		if err := dest.ReceiveStock(cmd.Quantity, unitCost); err != nil {
			return err
		}

		outLeg, err := domain.NewTransfer(source, cmd.Quantity.Neg(), ref, cmd.TransferredBy)
		if err != nil {
			return err
		}
		inLeg, err := domain.NewTransfer(dest, cmd.Quantity, ref, cmd.TransferredBy)
		if err != nil {
			return err
		}

		return h.stock.ApplyMovements(ctx, []domain.MovementPair{
			{Level: source, Movement: outLeg},
			{Level: dest, Movement: inLeg},
		})
	})
	if err != nil {
		return err
	}

	h.metrics.RecordMovement(string(domain.MovementTypeTransfer))

	logger.Info(ctx).
		Str("item_id", cmd.ItemID.String()).
		Str("from_warehouse", cmd.FromWarehouseID.String()).
		Str("to_warehouse", cmd.ToWarehouseID.String()).
		Str("quantity", cmd.Quantity.String()).
		Msg("Stock transferred")
	return nil
}

func binsEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
