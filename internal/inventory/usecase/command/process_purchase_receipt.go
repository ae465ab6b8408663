package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tair/stock-ledger/internal/inventory/domain"
	"github.com/tair/stock-ledger/internal/inventory/metrics"
	"github.com/tair/stock-ledger/kafka"
	"github.com/tair/stock-ledger/pkg/idempotency"
	"github.com/tair/stock-ledger/pkg/logger"
)

// ProcessPurchaseReceiptHandler applies a PurchaseOrderReceived event to
// the ledger: one receipt movement plus stock level update per resolvable
// line, committed atomically for the whole event.
type ProcessPurchaseReceiptHandler struct {
	stock     domain.StockRepository
	catalog   ItemCatalog
	resolver  *WarehouseResolver
	processed idempotency.Store
	publisher EventPublisher
	metrics   *metrics.Metrics
}

// NewProcessPurchaseReceiptHandler creates a new purchase receipt handler
func NewProcessPurchaseReceiptHandler(
	stock domain.StockRepository,
	catalog ItemCatalog,
	resolver *WarehouseResolver,
	processed idempotency.Store,
	publisher EventPublisher,
	m *metrics.Metrics,
) *ProcessPurchaseReceiptHandler {
	return &ProcessPurchaseReceiptHandler{
		stock:     stock,
		catalog:   catalog,
		resolver:  resolver,
		processed: processed,
		publisher: publisher,
		metrics:   m,
	}
}

// Handle executes the purchase receipt. Redelivery of an already processed
// event id is a no-op.
func (h *ProcessPurchaseReceiptHandler) Handle(ctx context.Context, event kafka.PurchaseOrderReceivedEvent) error {
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
		h.metrics.RecordEvent(kafka.EventTypePurchaseOrderReceived, "duplicate")
		logger.Info(ctx).
			Str("event_id", event.EventID).
			Str("purchase_order", event.PurchaseOrderNumber).
			Msg("Purchase receipt already processed, skipping")
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
		h.metrics.RecordEvent(kafka.EventTypePurchaseOrderReceived, "failed")
		return fmt.Errorf("apply purchase receipt %s: %w", event.PurchaseOrderNumber, err)
	}

	if err := h.processed.MarkProcessed(ctx, event.EventID); err != nil {
		// The ledger write committed; surfacing the error forces a
		// redelivery that will re-apply. Operators must treat a failing
		// dedup store as an availability incident, not a data one.
		return fmt.Errorf("mark processed event: %w", err)
	}

	h.metrics.RecordEvent(kafka.EventTypePurchaseOrderReceived, "applied")
	dispatchOutbox(ctx, h.publisher, h.metrics, pairs, event.PurchaseOrderNumber)

	logger.Info(ctx).
		Str("event_id", event.EventID).
		Str("purchase_order", event.PurchaseOrderNumber).
		Int("lines_applied", len(pairs)).
		Msg("Purchase receipt applied")
	return nil
}

func (h *ProcessPurchaseReceiptHandler) buildPairs(ctx context.Context, event kafka.PurchaseOrderReceivedEvent) ([]domain.MovementPair, error) {
	cache := newLevelCache(h.stock)
	ref := domain.MovementRef{Type: "PurchaseOrder", Number: event.PurchaseOrderNumber}

	var pairs []domain.MovementPair
	for _, line := range event.Items {
		if !line.ReceivedQuantity.IsPositive() {
			logger.Warn(ctx).
				Str("item_id", line.ItemID.String()).
				Str("quantity", line.ReceivedQuantity.String()).
				Msg("Skipping receipt line with non-positive quantity")
			continue
		}

		item, err := h.catalog.GetItem(ctx, line.ItemID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn(ctx).
					Str("item_id", line.ItemID.String()).
					Str("purchase_order", event.PurchaseOrderNumber).
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
		if errors.Is(err, domain.ErrNotFound) {
			level, err = domain.NewStockLevel(item.ID, warehouse.ID, line.BinID, decimal.Zero, decimal.Zero)
			if err == nil {
				cache.put(level)
			}
		}
		if err != nil {
			return nil, err
		}

		if err := level.ReceiveStock(line.ReceivedQuantity, line.UnitPrice); err != nil {
			return nil, err
		}

		var batch *domain.Batch
		var batchID *uuid.UUID
		if line.BatchNo != "" {
			batch = &domain.Batch{
				ID:          uuid.New(),
				BatchNumber: line.BatchNo,
				ItemID:      item.ID,
				ExpiryDate:  line.ExpiryDate,
			}
			batchID = &batch.ID
		}

		movement, err := domain.NewReceipt(level, line.ReceivedQuantity, line.UnitPrice, ref, event.ReceivedBy, batchID)
		if err != nil {
			return nil, err
		}
		movement.ItemName = item.Name
		movement.WarehouseName = warehouse.Name

		pairs = append(pairs, domain.MovementPair{Level: level, Movement: movement, Batch: batch})
	}
	return pairs, nil
}

// dispatchOutbox publishes a stock level change per applied pair and drains
// the aggregate outboxes. Publishing is best effort; the ledger is already
// committed.
func dispatchOutbox(ctx context.Context, publisher EventPublisher, m *metrics.Metrics, pairs []domain.MovementPair, reference string) {
	for _, pair := range pairs {
		m.RecordMovement(string(pair.Movement.MovementType))
		pair.Level.ClearEvents()

		if publisher == nil {
			continue
		}
		err := publisher.PublishStockLevelChanged(ctx, kafka.StockLevelChangedEvent{
			ItemID:          pair.Movement.ItemID,
			WarehouseID:     pair.Movement.WarehouseID,
			BinID:           pair.Movement.BinID,
			MovementType:    string(pair.Movement.MovementType),
			Quantity:        pair.Movement.Quantity,
			NewQuantity:     pair.Level.Quantity,
			ReferenceNumber: reference,
		})
		if err != nil {
			logger.Warn(ctx).
				Err(err).
				Str("item_id", pair.Movement.ItemID.String()).
				Msg("Failed to publish stock level change")
		}
	}
}
