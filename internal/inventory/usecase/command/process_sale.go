package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tair/stock-ledger/internal/inventory/domain"
	"github.com/tair/stock-ledger/internal/inventory/metrics"
	"github.com/tair/stock-ledger/kafka"
	"github.com/tair/stock-ledger/pkg/idempotency"
	"github.com/tair/stock-ledger/pkg/logger"
)

// ProcessSaleCompletedHandler issues stock for a completed sale. When a
// line asks for more than is available the issue is clamped to the
// available quantity rather than failing the whole event; the shortfall is
// logged. Lines with nothing available are skipped.
type ProcessSaleCompletedHandler struct {
	stock     domain.StockRepository
	catalog   ItemCatalog
	resolver  *WarehouseResolver
	processed idempotency.Store
	publisher EventPublisher
	metrics   *metrics.Metrics
}

// NewProcessSaleCompletedHandler creates a new sale completed handler
func NewProcessSaleCompletedHandler(
	stock domain.StockRepository,
	catalog ItemCatalog,
	resolver *WarehouseResolver,
	processed idempotency.Store,
	publisher EventPublisher,
	m *metrics.Metrics,
) *ProcessSaleCompletedHandler {
	return &ProcessSaleCompletedHandler{
		stock:     stock,
		catalog:   catalog,
		resolver:  resolver,
		processed: processed,
		publisher: publisher,
		metrics:   m,
	}
}

// Handle executes the sale issue. Redelivery of an already processed event
// id is a no-op.
func (h *ProcessSaleCompletedHandler) Handle(ctx context.Context, event kafka.SaleCompletedEvent) error {
	if event.EventID == "" {
		return fmt.Errorf("%w: event id is required", domain.ErrValidation)
	}

	start := time.Now()
	defer func() { h.metrics.ObserveApplyLatency(time.Since(start)) }()

	done, err := h.processed.HasProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("check processed event: %w", err)
	}
	if done {
		h.metrics.RecordEvent(kafka.EventTypeSaleCompleted, "duplicate")
		logger.Info(ctx).
			Str("event_id", event.EventID).
			Str("sale", event.SaleNumber).
			Msg("Sale already processed, skipping")
		return nil
	}

	var pairs []domain.MovementPair
	err = withConflictRetry(h.metrics, func() error {
		var buildErr error
		pairs, buildErr = h.buildPairs(ctx, event)
		if buildErr != nil {
			return buildErr
		}
		return h.stock.ApplyMovements(ctx, pairs)
	})
	if err != nil {
		h.metrics.RecordEvent(kafka.EventTypeSaleCompleted, "failed")
		return fmt.Errorf("apply sale %s: %w", event.SaleNumber, err)
	}

	if err := h.processed.MarkProcessed(ctx, event.EventID); err != nil {
		return fmt.Errorf("mark processed event: %w", err)
	}

	h.metrics.RecordEvent(kafka.EventTypeSaleCompleted, "applied")
	dispatchOutbox(ctx, h.publisher, h.metrics, pairs, event.SaleNumber)

	logger.Info(ctx).
		Str("event_id", event.EventID).
		Str("sale", event.SaleNumber).
		Int("lines_applied", len(pairs)).
		Msg("Sale applied")
	return nil
}

func (h *ProcessSaleCompletedHandler) buildPairs(ctx context.Context, event kafka.SaleCompletedEvent) ([]domain.MovementPair, error) {
	cache := newLevelCache(h.stock)
	ref := domain.MovementRef{Type: "Sale", Number: event.SaleNumber}

	var pairs []domain.MovementPair
	for _, line := range event.Items {
		if !line.Quantity.IsPositive() {
			logger.Warn(ctx).
				Str("item_id", line.ItemID.String()).
				Str("quantity", line.Quantity.String()).
				Msg("Skipping sale line with non-positive quantity")
			continue
		}

		item, err := h.catalog.GetItem(ctx, line.ItemID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn(ctx).
					Str("item_id", line.ItemID.String()).
					Str("sale", event.SaleNumber).
					Msg("Item not found in catalog, skipping line")
				continue
			}
			return nil, err
		}

		warehouse, err := h.resolver.Resolve(ctx, line.WarehouseID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrStructuralInvariant) {
				logger.Warn(ctx).
					Err(err).
					Str("item_id", line.ItemID.String()).
					Msg("Cannot resolve target warehouse, skipping line")
				continue
			}
			return nil, err
		}

		level, err := cache.get(ctx, item.ID, warehouse.ID, line.BinID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn(ctx).
					Str("item_id", line.ItemID.String()).
					Str("warehouse", warehouse.Code).
					Msg("No stock level for sold item, skipping line")
				continue
			}
			return nil, err
		}

		// Partial issue: never take more than what is available right now.
		available := level.AvailableQuantity()
		if !available.IsPositive() {
			logger.Warn(ctx).
				Str("item_id", line.ItemID.String()).
				Str("warehouse", warehouse.Code).
				Msg("Nothing available to issue, skipping line")
			continue
		}
		issueQty := line.Quantity
		if issueQty.GreaterThan(available) {
			logger.Warn(ctx).
				Str("item_id", line.ItemID.String()).
				Str("requested", line.Quantity.String()).
				Str("available", available.String()).
				Msg("Clamping issue to available quantity")
			issueQty = available
		}

		if err := level.IssueStock(issueQty); err != nil {
			return nil, err
		}

		movement, err := domain.NewIssue(level, issueQty, ref, event.CompletedBy)
		if err != nil {
			return nil, err
		}
		movement.ItemName = item.Name
		movement.WarehouseName = warehouse.Name

		pairs = append(pairs, domain.MovementPair{Level: level, Movement: movement})
	}
	return pairs, nil
}
