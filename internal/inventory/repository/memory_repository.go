package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tair/stock-ledger/internal/inventory/domain"
)

type levelKey struct {
	itemID      uuid.UUID
	warehouseID uuid.UUID
	binID       uuid.UUID // uuid.Nil when the key has no bin dimension
}

func keyFor(itemID, warehouseID uuid.UUID, binID *uuid.UUID) levelKey {
	k := levelKey{itemID: itemID, warehouseID: warehouseID}
	if binID != nil {
		k.binID = *binID
	}
	return k
}

// MemoryStockRepository is an in-memory StockRepository with the same
// optimistic-version semantics as the PostgreSQL implementation. It backs
// the use case and handler tests.
type MemoryStockRepository struct {
	mu        sync.RWMutex
	levels    map[levelKey]domain.StockLevel
	movements []domain.StockMovement
	batches   map[uuid.UUID]domain.Batch
}

// NewMemoryStockRepository creates an empty in-memory stock repository
func NewMemoryStockRepository() *MemoryStockRepository {
	return &MemoryStockRepository{
		levels:  make(map[levelKey]domain.StockLevel),
		batches: make(map[uuid.UUID]domain.Batch),
	}
}

func (r *MemoryStockRepository) FindLevel(_ context.Context, itemID, warehouseID uuid.UUID, binID *uuid.UUID) (*domain.StockLevel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	level, ok := r.levels[keyFor(itemID, warehouseID, binID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := level
	return &copied, nil
}

func (r *MemoryStockRepository) ApplyMovements(_ context.Context, pairs []domain.MovementPair) error {
	if len(pairs) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Pairs for the same key share one *StockLevel; it is checked and
	// written once, like the guarded row write in the SQL implementation.
	levels := distinctLevels(pairs)

	// Validate every version before touching anything so the batch stays
	// all-or-nothing.
	for _, level := range levels {
		if err := r.checkVersion(level); err != nil {
			return err
		}
	}

	for _, level := range levels {
		r.storeLevel(level)
	}
	for _, pair := range pairs {
		if pair.Batch != nil {
			r.batches[pair.Batch.ID] = *pair.Batch
		}
		r.movements = append(r.movements, *pair.Movement)
	}
	return nil
}

func (r *MemoryStockRepository) SaveLevel(_ context.Context, level *domain.StockLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkVersion(level); err != nil {
		return err
	}
	r.storeLevel(level)
	return nil
}

func (r *MemoryStockRepository) checkVersion(level *domain.StockLevel) error {
	key := keyFor(level.ItemID, level.WarehouseID, level.BinID)
	stored, exists := r.levels[key]
	if level.Version == 0 {
		if exists {
			return domain.ErrConcurrencyConflict
		}
		return nil
	}
	if !exists || stored.Version != level.Version {
		return domain.ErrConcurrencyConflict
	}
	return nil
}

func (r *MemoryStockRepository) storeLevel(level *domain.StockLevel) {
	if level.Version == 0 {
		level.Version = 1
	} else {
		level.Version++
	}
	copied := *level
	copied.ClearEvents()
	r.levels[keyFor(level.ItemID, level.WarehouseID, level.BinID)] = copied
}

func (r *MemoryStockRepository) ListMovements(_ context.Context, filter domain.MovementFilter) ([]domain.StockMovement, int64, error) {
	r.mu.RLock()
	matched := r.filtered(filter)
	r.mu.RUnlock()

	sortMovements(matched, filter.SortBy, filter.SortOrder)

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(matched) {
		return []domain.StockMovement{}, total, nil
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *MemoryStockRepository) SummarizeMovements(_ context.Context, filter domain.MovementFilter) (domain.MovementSummary, error) {
	r.mu.RLock()
	matched := r.filtered(filter)
	r.mu.RUnlock()

	summary := domain.MovementSummary{
		TotalReceived:    decimal.Zero,
		TotalIssued:      decimal.Zero,
		TotalAdjusted:    decimal.Zero,
		TotalTransferred: decimal.Zero,
		NetMovement:      decimal.Zero,
	}
	for _, m := range matched {
		switch m.MovementType {
		case domain.MovementTypeReceive:
			summary.TotalReceived = summary.TotalReceived.Add(m.Quantity)
		case domain.MovementTypeIssue:
			summary.TotalIssued = summary.TotalIssued.Add(m.Quantity.Neg())
		case domain.MovementTypeAdjust:
			summary.TotalAdjusted = summary.TotalAdjusted.Add(m.Quantity)
		case domain.MovementTypeTransfer:
			summary.TotalTransferred = summary.TotalTransferred.Add(m.Quantity.Abs())
		}
		summary.NetMovement = summary.NetMovement.Add(m.Quantity)
	}
	return summary, nil
}

func (r *MemoryStockRepository) filtered(filter domain.MovementFilter) []domain.StockMovement {
	var out []domain.StockMovement
	for _, m := range r.movements {
		if filter.ItemID != nil && m.ItemID != *filter.ItemID {
			continue
		}
		if filter.WarehouseID != nil && m.WarehouseID != *filter.WarehouseID {
			continue
		}
		if filter.BinID != nil && (m.BinID == nil || *m.BinID != *filter.BinID) {
			continue
		}
		if filter.MovementType != nil && m.MovementType != *filter.MovementType {
			continue
		}
		if filter.BatchID != nil && (m.BatchID == nil || *m.BatchID != *filter.BatchID) {
			continue
		}
		if filter.ReferenceNumber != "" && !strings.Contains(m.ReferenceNumber, filter.ReferenceNumber) {
			continue
		}
		if filter.FromDate != nil && m.MovementDate.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && m.MovementDate.After(*filter.ToDate) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func sortMovements(movements []domain.StockMovement, sortBy domain.SortField, order domain.SortOrder) {
	less := func(a, b domain.StockMovement) bool {
		switch sortBy {
		case domain.SortByItemName:
			if a.ItemName != b.ItemName {
				return a.ItemName < b.ItemName
			}
		case domain.SortByWarehouseName:
			if a.WarehouseName != b.WarehouseName {
				return a.WarehouseName < b.WarehouseName
			}
		case domain.SortByQuantity:
			if !a.Quantity.Equal(b.Quantity) {
				return a.Quantity.LessThan(b.Quantity)
			}
		case domain.SortByMovementType:
			if a.MovementType != b.MovementType {
				return a.MovementType < b.MovementType
			}
		default:
			if !a.MovementDate.Equal(b.MovementDate) {
				return a.MovementDate.Before(b.MovementDate)
			}
		}
		// id tiebreaker keeps pagination stable
		return a.ID.String() < b.ID.String()
	}

	sort.SliceStable(movements, func(i, j int) bool {
		if order == domain.SortAsc {
			return less(movements[i], movements[j])
		}
		return less(movements[j], movements[i])
	})
}

// MemoryWarehouseRepository is an in-memory WarehouseRepository for tests.
type MemoryWarehouseRepository struct {
	mu         sync.RWMutex
	warehouses map[uuid.UUID]*domain.Warehouse
}

// NewMemoryWarehouseRepository creates an empty in-memory warehouse
// repository
func NewMemoryWarehouseRepository() *MemoryWarehouseRepository {
	return &MemoryWarehouseRepository{warehouses: make(map[uuid.UUID]*domain.Warehouse)}
}

func (r *MemoryWarehouseRepository) Save(_ context.Context, w *domain.Warehouse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *w
	copied.ClearEvents()
	r.warehouses[w.ID] = &copied
	return nil
}

func (r *MemoryWarehouseRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.Warehouse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.warehouses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *w
	return &copied, nil
}

func (r *MemoryWarehouseRepository) FindByCode(_ context.Context, code string) (*domain.Warehouse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.warehouses {
		if w.Code == code {
			copied := *w
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryWarehouseRepository) FindAllActive(_ context.Context) ([]domain.Warehouse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Warehouse
	for _, w := range r.warehouses {
		if w.CanAcceptStock() {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *MemoryWarehouseRepository) SaveTree(_ context.Context, t *domain.Tree) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range t.All() {
		copied := *w
		copied.ClearEvents()
		r.warehouses[w.ID] = &copied
	}
	return nil
}

func (r *MemoryWarehouseRepository) LoadTree(_ context.Context) (*domain.Tree, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nodes := make([]*domain.Warehouse, 0, len(r.warehouses))
	for _, w := range r.warehouses {
		copied := *w
		nodes = append(nodes, &copied)
	}
	return domain.NewTree(nodes...)
}
