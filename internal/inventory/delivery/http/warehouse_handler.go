package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tair/stock-ledger/internal/inventory/usecase/command"
)

// WarehouseHandler handles HTTP requests for hierarchy maintenance
type WarehouseHandler struct {
	rebuildTree *command.RebuildWarehouseTreeHandler
}

// NewWarehouseHandler creates a new warehouse handler
func NewWarehouseHandler(rebuildTree *command.RebuildWarehouseTreeHandler) *WarehouseHandler {
	return &WarehouseHandler{rebuildTree: rebuildTree}
}

// RebuildTree handles POST /api/warehouses/tree/rebuild
func (h *WarehouseHandler) RebuildTree(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.rebuildTree.Handle(r.Context())
	if err != nil {
		respondError(w, r, err, "Failed to rebuild warehouse tree")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Warehouse tree rebuilt successfully",
		Data:    map[string]int{"nodes": nodes},
	})
}

// RegisterRoutes registers all warehouse routes
func (h *WarehouseHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/warehouses/tree/rebuild", h.RebuildTree).Methods("POST")
}
