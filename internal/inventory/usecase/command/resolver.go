package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tair/stock-ledger/internal/inventory/domain"
	"github.com/tair/stock-ledger/pkg/logger"
)

// WarehouseResolver picks the target warehouse for an event line. Explicit
// warehouse ids win; otherwise the configured default code is used. The
// "first active warehouse" fallback only applies when no default is
// configured, and it logs a warning because the choice is arbitrary.
type WarehouseResolver struct {
	warehouses  domain.WarehouseRepository
	defaultCode string
}

// NewWarehouseResolver creates a resolver with an optional default
// warehouse code
func NewWarehouseResolver(warehouses domain.WarehouseRepository, defaultCode string) *WarehouseResolver {
	return &WarehouseResolver{warehouses: warehouses, defaultCode: defaultCode}
}

// Resolve returns the warehouse a line should target. The result always
// accepts stock; disabled or group warehouses fail with
// ErrStructuralInvariant.
func (r *WarehouseResolver) Resolve(ctx context.Context, explicit *uuid.UUID) (*domain.Warehouse, error) {
	if explicit != nil {
		w, err := r.warehouses.FindByID(ctx, *explicit)
		if err != nil {
			return nil, err
		}
		if !w.CanAcceptStock() {
			return nil, fmt.Errorf("%w: warehouse %s cannot accept stock", domain.ErrStructuralInvariant, w.Code)
		}
		return w, nil
	}

	if r.defaultCode != "" {
		w, err := r.warehouses.FindByCode(ctx, r.defaultCode)
		if err != nil {
			return nil, err
		}
		if !w.CanAcceptStock() {
			return nil, fmt.Errorf("%w: default warehouse %s cannot accept stock", domain.ErrStructuralInvariant, w.Code)
		}
		return w, nil
	}

	active, err := r.warehouses.FindAllActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: no active warehouse to route line to", domain.ErrNotFound)
	}
	logger.Warn(ctx).
		Str("warehouse_code", active[0].Code).
		Msg("No default warehouse configured, falling back to first active warehouse")
	return &active[0], nil
}
