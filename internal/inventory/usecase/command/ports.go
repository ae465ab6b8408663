package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tair/stock-ledger/internal/inventory/client"
	"github.com/tair/stock-ledger/internal/inventory/domain"
	"github.com/tair/stock-ledger/internal/inventory/metrics"
	"github.com/tair/stock-ledger/kafka"
)

// maxConflictRetries bounds the optimistic read-modify-write cycle. A
// writer that keeps losing the version check surfaces the conflict to the
// caller instead of blocking.
const maxConflictRetries = 3

// ItemCatalog resolves items against the catalog collaborator
type ItemCatalog interface {
	GetItem(ctx context.Context, itemID uuid.UUID) (*client.Item, error)
}

// EventPublisher dispatches stock change notifications after commit
type EventPublisher interface {
	PublishStockLevelChanged(ctx context.Context, event kafka.StockLevelChangedEvent) error
}

// withConflictRetry runs fn until it succeeds, fails with a non-conflict
// error, or the retry bound is exhausted. fn must re-read its state on each
// attempt.
func withConflictRetry(m *metrics.Metrics, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = fn()
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}
		m.RecordConflictRetry()
	}
	return fmt.Errorf("retries exhausted: %w", domain.ErrConcurrencyConflict)
}

// levelCache loads each stock level at most once per event so lines hitting
// the same key observe each other's uncommitted mutations.
type levelCache struct {
	stock  domain.StockRepository
	loaded map[string]*domain.StockLevel
}

func newLevelCache(stock domain.StockRepository) *levelCache {
	return &levelCache{stock: stock, loaded: make(map[string]*domain.StockLevel)}
}

func cacheKey(itemID, warehouseID uuid.UUID, binID *uuid.UUID) string {
	bin := ""
	if binID != nil {
		bin = binID.String()
	}
	return itemID.String() + "/" + warehouseID.String() + "/" + bin
}

// get returns the cached or stored level, or domain.ErrNotFound when the
// key has never been written.
func (c *levelCache) get(ctx context.Context, itemID, warehouseID uuid.UUID, binID *uuid.UUID) (*domain.StockLevel, error) {
	key := cacheKey(itemID, warehouseID, binID)
	if level, ok := c.loaded[key]; ok {
		return level, nil
	}
	level, err := c.stock.FindLevel(ctx, itemID, warehouseID, binID)
	if err != nil {
		return nil, err
	}
	c.loaded[key] = level
	return level, nil
}

// put registers a lazily created level.
func (c *levelCache) put(level *domain.StockLevel) {
	c.loaded[cacheKey(level.ItemID, level.WarehouseID, level.BinID)] = level
}
