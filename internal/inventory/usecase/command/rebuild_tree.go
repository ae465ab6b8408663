package command

import (
	"context"

	"github.com/tair/stock-ledger/internal/inventory/domain"
	"github.com/tair/stock-ledger/pkg/logger"
)

// RebuildWarehouseTreeHandler renumbers the warehouse forest and persists
// it. Bulk hierarchy edits can leave stored boundaries stale; this is the
// maintenance path that restores them.
type RebuildWarehouseTreeHandler struct {
	warehouses domain.WarehouseRepository
}

// NewRebuildWarehouseTreeHandler creates a new tree rebuild handler
func NewRebuildWarehouseTreeHandler(warehouses domain.WarehouseRepository) *RebuildWarehouseTreeHandler {
	return &RebuildWarehouseTreeHandler{warehouses: warehouses}
}

// Handle loads the stored hierarchy, which renumbers the whole forest, then
// validates and writes it back. Returns the number of nodes covered.
func (h *RebuildWarehouseTreeHandler) Handle(ctx context.Context) (int, error) {
	tree, err := h.warehouses.LoadTree(ctx)
	if err != nil {
		return 0, err
	}
	if err := tree.Validate(); err != nil {
		return 0, err
	}
	if err := h.warehouses.SaveTree(ctx, tree); err != nil {
		return 0, err
	}

	nodes := len(tree.All())
	logger.Info(ctx).Int("nodes", nodes).Msg("Warehouse tree renumbered")
	return nodes, nil
}
