package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/tair/stock-ledger/internal/inventory/domain"
	"github.com/tair/stock-ledger/internal/inventory/usecase/command"
	"github.com/tair/stock-ledger/internal/inventory/usecase/query"
	"github.com/tair/stock-ledger/pkg/logger"
)

// StockHandler handles HTTP requests for the stock ledger
type StockHandler struct {
	getLevel     *query.GetStockLevelHandler
	getAvailable *query.GetAvailableQuantityHandler
	history      *query.MovementHistoryHandler
	adjust       *command.AdjustStockHandler
	transfer     *command.TransferStockHandler
	reserve      *command.ReserveStockHandler
	release      *command.ReleaseReservationHandler
}

// NewStockHandler creates a new stock handler
func NewStockHandler(
	getLevel *query.GetStockLevelHandler,
	getAvailable *query.GetAvailableQuantityHandler,
	history *query.MovementHistoryHandler,
	adjust *command.AdjustStockHandler,
	transfer *command.TransferStockHandler,
	reserve *command.ReserveStockHandler,
	release *command.ReleaseReservationHandler,
) *StockHandler {
	return &StockHandler{
		getLevel:     getLevel,
		getAvailable: getAvailable,
		history:      history,
		adjust:       adjust,
		transfer:     transfer,
		reserve:      reserve,
		release:      release,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// GetStockLevel handles GET /api/stock/levels
func (h *StockHandler) GetStockLevel(w http.ResponseWriter, r *http.Request) {
	key, err := parseLevelKey(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	level, err := h.getLevel.Handle(r.Context(), *key)
	if err != nil {
		respondError(w, r, err, "Failed to get stock level")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: level})
}

// GetAvailableQuantity handles GET /api/stock/available
func (h *StockHandler) GetAvailableQuantity(w http.ResponseWriter, r *http.Request) {
	key, err := parseLevelKey(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	available, err := h.getAvailable.Handle(r.Context(), *key)
	if err != nil {
		respondError(w, r, err, "Failed to get available quantity")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]string{
			"available_quantity": available.String(),
		},
	})
}

// GetMovementHistory handles GET /api/stock/movements
func (h *StockHandler) GetMovementHistory(w http.ResponseWriter, r *http.Request) {
	q, err := parseHistoryQuery(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	result, err := h.history.Handle(r.Context(), *q)
	if err != nil {
		respondError(w, r, err, "Failed to query movement history")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

// AdjustStock handles POST /api/stock/adjustments
func (h *StockHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID          uuid.UUID       `json:"item_id"`
		WarehouseID     uuid.UUID       `json:"warehouse_id"`
		BinID           *uuid.UUID      `json:"bin_id"`
		Quantity        decimal.Decimal `json:"quantity"`
		ReferenceNumber string          `json:"reference_number"`
		AdjustedBy      string          `json:"adjusted_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	level, err := h.adjust.Handle(r.Context(), command.AdjustStockCommand{
		ItemID:          req.ItemID,
		WarehouseID:     req.WarehouseID,
		BinID:           req.BinID,
		Quantity:        req.Quantity,
		ReferenceNumber: req.ReferenceNumber,
		AdjustedBy:      req.AdjustedBy,
	})
	if err != nil {
		respondError(w, r, err, "Failed to adjust stock")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Stock adjusted successfully",
		Data:    level,
	})
}

// TransferStock handles POST /api/stock/transfers
func (h *StockHandler) TransferStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID          uuid.UUID       `json:"item_id"`
		FromWarehouseID uuid.UUID       `json:"from_warehouse_id"`
		FromBinID       *uuid.UUID      `json:"from_bin_id"`
		ToWarehouseID   uuid.UUID       `json:"to_warehouse_id"`
		ToBinID         *uuid.UUID      `json:"to_bin_id"`
		Quantity        decimal.Decimal `json:"quantity"`
		ReferenceNumber string          `json:"reference_number"`
		TransferredBy   string          `json:"transferred_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	err := h.transfer.Handle(r.Context(), command.TransferStockCommand{
		ItemID:          req.ItemID,
		FromWarehouseID: req.FromWarehouseID,
		FromBinID:       req.FromBinID,
		ToWarehouseID:   req.ToWarehouseID,
		ToBinID:         req.ToBinID,
		Quantity:        req.Quantity,
		ReferenceNumber: req.ReferenceNumber,
		TransferredBy:   req.TransferredBy,
	})
	if err != nil {
		respondError(w, r, err, "Failed to transfer stock")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Message: "Stock transferred successfully"})
}

// ReserveStock handles POST /api/stock/reservations
func (h *StockHandler) ReserveStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID      uuid.UUID       `json:"item_id"`
		WarehouseID uuid.UUID       `json:"warehouse_id"`
		BinID       *uuid.UUID      `json:"bin_id"`
		Quantity    decimal.Decimal `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	level, err := h.reserve.Handle(r.Context(), command.ReserveStockCommand{
		ItemID:      req.ItemID,
		WarehouseID: req.WarehouseID,
		BinID:       req.BinID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		respondError(w, r, err, "Failed to reserve stock")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Stock reserved successfully",
		Data:    level,
	})
}

// ReleaseReservation handles DELETE /api/stock/reservations
func (h *StockHandler) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID      uuid.UUID       `json:"item_id"`
		WarehouseID uuid.UUID       `json:"warehouse_id"`
		BinID       *uuid.UUID      `json:"bin_id"`
		Quantity    decimal.Decimal `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	level, err := h.release.Handle(r.Context(), command.ReleaseReservationCommand{
		ItemID:      req.ItemID,
		WarehouseID: req.WarehouseID,
		BinID:       req.BinID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		respondError(w, r, err, "Failed to release reservation")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Reservation released successfully",
		Data:    level,
	})
}

// RegisterRoutes registers all stock routes
func (h *StockHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/stock/levels", h.GetStockLevel).Methods("GET")
	router.HandleFunc("/api/stock/available", h.GetAvailableQuantity).Methods("GET")
	router.HandleFunc("/api/stock/movements", h.GetMovementHistory).Methods("GET")
	router.HandleFunc("/api/stock/adjustments", h.AdjustStock).Methods("POST")
	router.HandleFunc("/api/stock/transfers", h.TransferStock).Methods("POST")
	router.HandleFunc("/api/stock/reservations", h.ReserveStock).Methods("POST")
	router.HandleFunc("/api/stock/reservations", h.ReleaseReservation).Methods("DELETE")
}

// RegisterHealthCheck registers health check endpoint
func (h *StockHandler) RegisterHealthCheck(router *mux.Router, db *sql.DB) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, Response{
				Success: false,
				Error:   "Database unavailable",
			})
			return
		}

		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Inventory service is healthy",
		})
	}).Methods("GET")
}

func parseLevelKey(r *http.Request) (*query.GetStockLevelQuery, error) {
	itemID, err := uuid.Parse(r.URL.Query().Get("item_id"))
	if err != nil {
		return nil, errors.New("item_id must be a valid uuid")
	}
	warehouseID, err := uuid.Parse(r.URL.Query().Get("warehouse_id"))
	if err != nil {
		return nil, errors.New("warehouse_id must be a valid uuid")
	}
	q := query.GetStockLevelQuery{ItemID: itemID, WarehouseID: warehouseID}
	if raw := r.URL.Query().Get("bin_id"); raw != "" {
		binID, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.New("bin_id must be a valid uuid")
		}
		q.BinID = &binID
	}
	return &q, nil
}

func parseHistoryQuery(r *http.Request) (*query.MovementHistoryQuery, error) {
	params := r.URL.Query()
	q := query.MovementHistoryQuery{
		ReferenceNumber: params.Get("reference_number"),
		SortBy:          domain.SortField(params.Get("sort_by")),
		SortOrder:       domain.SortOrder(params.Get("sort_order")),
	}

	for name, target := range map[string]**uuid.UUID{
		"item_id":      &q.ItemID,
		"warehouse_id": &q.WarehouseID,
		"bin_id":       &q.BinID,
		"batch_id":     &q.BatchID,
	} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.New(name + " must be a valid uuid")
		}
		*target = &id
	}

	if raw := params.Get("movement_type"); raw != "" {
		mt := domain.MovementType(raw)
		q.MovementType = &mt
	}
	if raw := params.Get("from_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("from_date must be RFC3339")
		}
		q.FromDate = &t
	}
	if raw := params.Get("to_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("to_date must be RFC3339")
		}
		q.ToDate = &t
	}

	q.Page, _ = strconv.Atoi(params.Get("page"))
	q.PageSize, _ = strconv.Atoi(params.Get("page_size"))
	return &q, nil
}

// respondError maps domain errors onto HTTP statuses.
func respondError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientStock):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrStructuralInvariant):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		logger.Error(r.Context()).Err(err).Msg(logMsg)
	}
	respondJSON(w, status, Response{Success: false, Error: err.Error()})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
