package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/stock-ledger/internal/inventory/client"
	"github.com/tair/stock-ledger/internal/inventory/domain"
	"github.com/tair/stock-ledger/internal/inventory/repository"
	"github.com/tair/stock-ledger/kafka"
	"github.com/tair/stock-ledger/pkg/idempotency"
)

type stubCatalog struct {
	items map[uuid.UUID]client.Item
}

func (c *stubCatalog) GetItem(_ context.Context, itemID uuid.UUID) (*client.Item, error) {
	item, ok := c.items[itemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
	}
	return &item, nil
}

type recordingPublisher struct {
	published []kafka.StockLevelChangedEvent
}

func (p *recordingPublisher) PublishStockLevelChanged(_ context.Context, event kafka.StockLevelChangedEvent) error {
	p.published = append(p.published, event)
	return nil
}

// conflictingStockRepo reads through to the wrapped repository but every
// write loses the version check.
type conflictingStockRepo struct {
	domain.StockRepository
}

func (r *conflictingStockRepo) ApplyMovements(context.Context, []domain.MovementPair) error {
	return domain.ErrConcurrencyConflict
}

func (r *conflictingStockRepo) SaveLevel(context.Context, *domain.StockLevel) error {
	return domain.ErrConcurrencyConflict
}

type consumerEnv struct {
	stock     *repository.MemoryStockRepository
	catalog   *stubCatalog
	resolver  *WarehouseResolver
	processed idempotency.Store
	publisher *recordingPublisher
	warehouse *domain.Warehouse
	itemID    uuid.UUID
}

func newConsumerEnv(t *testing.T) *consumerEnv {
	t.Helper()

	warehouses := repository.NewMemoryWarehouseRepository()
	warehouse, err := domain.NewWarehouse("WH-MAIN", "Main Warehouse", "ACME")
	require.NoError(t, err)
	require.NoError(t, warehouses.Save(context.Background(), warehouse))

	itemID := uuid.New()
	return &consumerEnv{
		stock: repository.NewMemoryStockRepository(),
		catalog: &stubCatalog{items: map[uuid.UUID]client.Item{
			itemID: {ID: itemID, Name: "Widget", SKU: "WDG-1"},
		}},
		resolver:  NewWarehouseResolver(warehouses, "WH-MAIN"),
		processed: idempotency.NewMemoryStore(),
		publisher: &recordingPublisher{},
		warehouse: warehouse,
		itemID:    itemID,
	}
}

func (e *consumerEnv) receiptHandler() *ProcessPurchaseReceiptHandler {
	return NewProcessPurchaseReceiptHandler(e.stock, e.catalog, e.resolver, e.processed, e.publisher, nil)
}

func (e *consumerEnv) saleHandler() *ProcessSaleCompletedHandler {
	return NewProcessSaleCompletedHandler(e.stock, e.catalog, e.resolver, e.processed, e.publisher, nil)
}

func receiptEvent(eventID string, items ...kafka.PurchaseOrderItem) kafka.PurchaseOrderReceivedEvent {
	return kafka.PurchaseOrderReceivedEvent{
		EventID:             eventID,
		PurchaseOrderID:     uuid.New(),
		PurchaseOrderNumber: "PO-" + eventID,
		ReceivedBy:          "receiver",
		Items:               items,
	}
}

func saleEvent(eventID string, items ...kafka.SaleItem) kafka.SaleCompletedEvent {
	return kafka.SaleCompletedEvent{
		EventID:     eventID,
		SaleID:      uuid.New(),
		SaleNumber:  "SO-" + eventID,
		CompletedBy: "cashier",
		Items:       items,
	}
}

func TestPurchaseReceiptAppliesLines(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()

	event := receiptEvent("evt-1",
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(100), UnitPrice: decimal.NewFromInt(10)},
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(50), UnitPrice: decimal.NewFromInt(16)},
	)
	require.NoError(t, env.receiptHandler().Handle(ctx, event))

	level, err := env.stock.FindLevel(ctx, env.itemID, env.warehouse.ID, nil)
	require.NoError(t, err)
	assert.True(t, level.Quantity.Equal(decimal.NewFromInt(150)))
	assert.True(t, level.UnitCost.Equal(decimal.NewFromInt(12)), "moving average over both lines")

	_, total, err := env.stock.ListMovements(ctx, domain.MovementFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	require.Len(t, env.publisher.published, 2)
	assert.Equal(t, "receive", env.publisher.published[0].MovementType)
}

func TestPurchaseReceiptWithRepeatedItemLines(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()
	handler := env.receiptHandler()

	// seed an existing row so the repeated lines go through the guarded
	// update path rather than the insert path
	require.NoError(t, handler.Handle(ctx, receiptEvent("evt-1",
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(20), UnitPrice: decimal.NewFromInt(10)},
	)))

	require.NoError(t, handler.Handle(ctx, receiptEvent("evt-2",
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(100), UnitPrice: decimal.NewFromInt(10)},
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(30), UnitPrice: decimal.NewFromInt(10)},
	)))

	level, err := env.stock.FindLevel(ctx, env.itemID, env.warehouse.ID, nil)
	require.NoError(t, err)
	assert.True(t, level.Quantity.Equal(decimal.NewFromInt(150)))
	assert.EqualValues(t, 2, level.Version, "lines for one key share a single level write per event")

	_, total, err := env.stock.ListMovements(ctx, domain.MovementFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total, "each line still gets its own ledger row")
}

func TestPurchaseReceiptDenormalizesNames(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()

	event := receiptEvent("evt-1",
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(1)},
	)
	require.NoError(t, env.receiptHandler().Handle(ctx, event))

	movements, _, err := env.stock.ListMovements(ctx, domain.MovementFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, "Widget", movements[0].ItemName)
	assert.Equal(t, "Main Warehouse", movements[0].WarehouseName)
}

func TestPurchaseReceiptReplayIsNoOp(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()
	handler := env.receiptHandler()

	event := receiptEvent("evt-1",
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(100), UnitPrice: decimal.NewFromInt(10)},
	)
	require.NoError(t, handler.Handle(ctx, event))
	require.NoError(t, handler.Handle(ctx, event))

	level, err := env.stock.FindLevel(ctx, env.itemID, env.warehouse.ID, nil)
	require.NoError(t, err)
	assert.True(t, level.Quantity.Equal(decimal.NewFromInt(100)), "replay must not double-apply")

	_, total, err := env.stock.ListMovements(ctx, domain.MovementFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestPurchaseReceiptRequiresEventID(t *testing.T) {
	env := newConsumerEnv(t)

	err := env.receiptHandler().Handle(context.Background(), receiptEvent(""))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPurchaseReceiptSkipsUnknownItems(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()

	event := receiptEvent("evt-1",
		kafka.PurchaseOrderItem{ItemID: uuid.New(), ReceivedQuantity: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(1)},
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(1)},
	)
	require.NoError(t, env.receiptHandler().Handle(ctx, event))

	_, total, err := env.stock.ListMovements(ctx, domain.MovementFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total, "only the resolvable line is applied")
}

func TestPurchaseReceiptSkipsNonPositiveQuantities(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()

	event := receiptEvent("evt-1",
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(-5), UnitPrice: decimal.NewFromInt(1)},
	)
	require.NoError(t, env.receiptHandler().Handle(ctx, event))

	_, err := env.stock.FindLevel(ctx, env.itemID, env.warehouse.ID, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPurchaseReceiptPersistsBatch(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()

	event := receiptEvent("evt-1",
		kafka.PurchaseOrderItem{
			ItemID:           env.itemID,
			ReceivedQuantity: decimal.NewFromInt(10),
			UnitPrice:        decimal.NewFromInt(1),
			BatchNo:          "BATCH-7",
		},
	)
	require.NoError(t, env.receiptHandler().Handle(ctx, event))

	movements, _, err := env.stock.ListMovements(ctx, domain.MovementFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.NotNil(t, movements[0].BatchID)
}

func TestSaleIssuesStock(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()

	receipt := receiptEvent("evt-1",
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(100), UnitPrice: decimal.NewFromInt(10)},
	)
	require.NoError(t, env.receiptHandler().Handle(ctx, receipt))

	sale := saleEvent("evt-2",
		kafka.SaleItem{ItemID: env.itemID, Quantity: decimal.NewFromInt(40), UnitPrice: decimal.NewFromInt(25)},
	)
	require.NoError(t, env.saleHandler().Handle(ctx, sale))

	level, err := env.stock.FindLevel(ctx, env.itemID, env.warehouse.ID, nil)
	require.NoError(t, err)
	assert.True(t, level.Quantity.Equal(decimal.NewFromInt(60)))

	issueType := domain.MovementTypeIssue
	movements, _, err := env.stock.ListMovements(ctx, domain.MovementFilter{MovementType: &issueType, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.True(t, movements[0].Quantity.Equal(decimal.NewFromInt(-40)), "issues are stored negative")
	assert.True(t, movements[0].UnitCost.Equal(decimal.NewFromInt(10)), "issue valued at moving average cost")
}

func TestSaleClampsToAvailable(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()

	receipt := receiptEvent("evt-1",
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(30), UnitPrice: decimal.NewFromInt(10)},
	)
	require.NoError(t, env.receiptHandler().Handle(ctx, receipt))

	sale := saleEvent("evt-2",
		kafka.SaleItem{ItemID: env.itemID, Quantity: decimal.NewFromInt(50), UnitPrice: decimal.NewFromInt(25)},
	)
	require.NoError(t, env.saleHandler().Handle(ctx, sale))

	level, err := env.stock.FindLevel(ctx, env.itemID, env.warehouse.ID, nil)
	require.NoError(t, err)
	assert.True(t, level.Quantity.IsZero(), "issue clamps to what was available")
}

func TestSaleSkipsLineWithoutStockLevel(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()

	sale := saleEvent("evt-1",
		kafka.SaleItem{ItemID: env.itemID, Quantity: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(1)},
	)
	require.NoError(t, env.saleHandler().Handle(ctx, sale))

	_, total, err := env.stock.ListMovements(ctx, domain.MovementFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestSaleReplayIsNoOp(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()

	receipt := receiptEvent("evt-1",
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(100), UnitPrice: decimal.NewFromInt(10)},
	)
	require.NoError(t, env.receiptHandler().Handle(ctx, receipt))

	handler := env.saleHandler()
	sale := saleEvent("evt-2",
		kafka.SaleItem{ItemID: env.itemID, Quantity: decimal.NewFromInt(40), UnitPrice: decimal.NewFromInt(25)},
	)
	require.NoError(t, handler.Handle(ctx, sale))
	require.NoError(t, handler.Handle(ctx, sale))

	level, err := env.stock.FindLevel(ctx, env.itemID, env.warehouse.ID, nil)
	require.NoError(t, err)
	assert.True(t, level.Quantity.Equal(decimal.NewFromInt(60)))
}

// Walks the documented lifecycle: two receipts build a moving average of 12,
// a sale takes most of it, and replaying the sale changes nothing.
func TestReceiptAndSaleLifecycle(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()
	receipts := env.receiptHandler()
	sales := env.saleHandler()

	require.NoError(t, receipts.Handle(ctx, receiptEvent("evt-1",
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(100), UnitPrice: decimal.NewFromInt(10)},
	)))
	require.NoError(t, receipts.Handle(ctx, receiptEvent("evt-2",
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(50), UnitPrice: decimal.NewFromInt(16)},
	)))

	level, err := env.stock.FindLevel(ctx, env.itemID, env.warehouse.ID, nil)
	require.NoError(t, err)
	assert.True(t, level.Quantity.Equal(decimal.NewFromInt(150)))
	assert.True(t, level.UnitCost.Equal(decimal.NewFromInt(12)))

	sale := saleEvent("evt-3",
		kafka.SaleItem{ItemID: env.itemID, Quantity: decimal.NewFromInt(120), UnitPrice: decimal.NewFromInt(25)},
	)
	require.NoError(t, sales.Handle(ctx, sale))
	require.NoError(t, sales.Handle(ctx, sale))

	level, err = env.stock.FindLevel(ctx, env.itemID, env.warehouse.ID, nil)
	require.NoError(t, err)
	assert.True(t, level.Quantity.Equal(decimal.NewFromInt(30)))
	assert.True(t, level.UnitCost.Equal(decimal.NewFromInt(12)), "issues never move the average")

	summary, err := env.stock.SummarizeMovements(ctx, domain.MovementFilter{ItemID: &env.itemID})
	require.NoError(t, err)
	assert.True(t, summary.NetMovement.Equal(level.Quantity), "ledger reconstructs the on-hand quantity")
}

func TestRetryExhaustionSurfacesConflict(t *testing.T) {
	env := newConsumerEnv(t)
	ctx := context.Background()

	handler := NewProcessPurchaseReceiptHandler(
		&conflictingStockRepo{StockRepository: env.stock},
		env.catalog, env.resolver, env.processed, env.publisher, nil,
	)
	event := receiptEvent("evt-1",
		kafka.PurchaseOrderItem{ItemID: env.itemID, ReceivedQuantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(1)},
	)

	err := handler.Handle(ctx, event)
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	// a failed event must stay unprocessed so redelivery can retry it
	done, storeErr := env.processed.HasProcessed(ctx, "evt-1")
	require.NoError(t, storeErr)
	assert.False(t, done)
}
