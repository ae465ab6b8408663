package repository

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tair/stock-ledger/internal/inventory/domain"
)

var tracer = otel.Tracer("stock-repository")

// TracingStockRepository wraps a StockRepository with tracing
type TracingStockRepository struct {
	inner domain.StockRepository
}

// NewTracingStockRepository creates a tracing decorator around the given
// repository
func NewTracingStockRepository(inner domain.StockRepository) *TracingStockRepository {
	return &TracingStockRepository{inner: inner}
}

func (r *TracingStockRepository) FindLevel(ctx context.Context, itemID, warehouseID uuid.UUID, binID *uuid.UUID) (*domain.StockLevel, error) {
	ctx, span := tracer.Start(ctx, "repository.FindLevel")
	span.SetAttributes(
		attribute.String("stock.item_id", itemID.String()),
		attribute.String("stock.warehouse_id", warehouseID.String()),
	)
	defer span.End()

	level, err := r.inner.FindLevel(ctx, itemID, warehouseID, binID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("stock.quantity", level.Quantity.String()))
	return level, nil
}

func (r *TracingStockRepository) ApplyMovements(ctx context.Context, pairs []domain.MovementPair) error {
	ctx, span := tracer.Start(ctx, "repository.ApplyMovements")
	span.SetAttributes(attribute.Int("stock.pairs", len(pairs)))
	defer span.End()

	if err := r.inner.ApplyMovements(ctx, pairs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (r *TracingStockRepository) SaveLevel(ctx context.Context, level *domain.StockLevel) error {
	ctx, span := tracer.Start(ctx, "repository.SaveLevel")
	span.SetAttributes(
		attribute.String("stock.item_id", level.ItemID.String()),
		attribute.String("stock.warehouse_id", level.WarehouseID.String()),
	)
	defer span.End()

	if err := r.inner.SaveLevel(ctx, level); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (r *TracingStockRepository) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, int64, error) {
	ctx, span := tracer.Start(ctx, "repository.ListMovements")
	span.SetAttributes(
		attribute.Int("query.page", filter.Page),
		attribute.Int("query.page_size", filter.PageSize),
	)
	defer span.End()

	movements, total, err := r.inner.ListMovements(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, err
	}
	span.SetAttributes(attribute.Int64("query.total_count", total))
	return movements, total, nil
}

func (r *TracingStockRepository) SummarizeMovements(ctx context.Context, filter domain.MovementFilter) (domain.MovementSummary, error) {
	ctx, span := tracer.Start(ctx, "repository.SummarizeMovements")
	defer span.End()

	summary, err := r.inner.SummarizeMovements(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.MovementSummary{}, err
	}
	return summary, nil
}
