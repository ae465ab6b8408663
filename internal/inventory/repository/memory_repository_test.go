package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/tair/stock-ledger/internal/inventory/domain"
)

type MemoryStockRepositorySuite struct {
	suite.Suite
	repo *MemoryStockRepository
	ctx  context.Context
}

func (s *MemoryStockRepositorySuite) SetupTest() {
	s.repo = NewMemoryStockRepository()
	s.ctx = context.Background()
}

func (s *MemoryStockRepositorySuite) receive(itemID, warehouseID uuid.UUID, qty, cost int64, ref string) *domain.StockLevel {
	level, err := s.repo.FindLevel(s.ctx, itemID, warehouseID, nil)
	if err != nil {
		s.Require().ErrorIs(err, domain.ErrNotFound)
		level, err = domain.NewStockLevel(itemID, warehouseID, nil, decimal.Zero, decimal.Zero)
		s.Require().NoError(err)
	}
	s.Require().NoError(level.ReceiveStock(decimal.NewFromInt(qty), decimal.NewFromInt(cost)))

	movement, err := domain.NewReceipt(level, decimal.NewFromInt(qty), decimal.NewFromInt(cost),
		domain.MovementRef{Type: "PurchaseOrder", Number: ref}, "tester", nil)
	s.Require().NoError(err)

	s.Require().NoError(s.repo.ApplyMovements(s.ctx, []domain.MovementPair{{Level: level, Movement: movement}}))
	return level
}

func (s *MemoryStockRepositorySuite) TestApplyMovementsPersistsPair() {
	itemID, warehouseID := uuid.New(), uuid.New()
	s.receive(itemID, warehouseID, 100, 10, "PO-1")

	level, err := s.repo.FindLevel(s.ctx, itemID, warehouseID, nil)
	s.Require().NoError(err)
	s.True(level.Quantity.Equal(decimal.NewFromInt(100)))
	s.EqualValues(1, level.Version)

	movements, total, err := s.repo.ListMovements(s.ctx, domain.MovementFilter{Page: 1, PageSize: 10})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.True(movements[0].Quantity.Equal(decimal.NewFromInt(100)))
}

func (s *MemoryStockRepositorySuite) TestVersionIncrementsPerWrite() {
	itemID, warehouseID := uuid.New(), uuid.New()
	s.receive(itemID, warehouseID, 10, 1, "PO-1")
	s.receive(itemID, warehouseID, 10, 1, "PO-2")

	level, err := s.repo.FindLevel(s.ctx, itemID, warehouseID, nil)
	s.Require().NoError(err)
	s.EqualValues(2, level.Version)
	s.True(level.Quantity.Equal(decimal.NewFromInt(20)))
}

func (s *MemoryStockRepositorySuite) TestPairsSharingOneLevelWriteItOnce() {
	itemID, warehouseID := uuid.New(), uuid.New()

	level, err := domain.NewStockLevel(itemID, warehouseID, nil, decimal.Zero, decimal.Zero)
	s.Require().NoError(err)

	s.Require().NoError(level.ReceiveStock(decimal.NewFromInt(100), decimal.NewFromInt(10)))
	first, err := domain.NewReceipt(level, decimal.NewFromInt(100), decimal.NewFromInt(10),
		domain.MovementRef{Type: "PurchaseOrder", Number: "PO-1"}, "tester", nil)
	s.Require().NoError(err)

	s.Require().NoError(level.ReceiveStock(decimal.NewFromInt(50), decimal.NewFromInt(10)))
	second, err := domain.NewReceipt(level, decimal.NewFromInt(50), decimal.NewFromInt(10),
		domain.MovementRef{Type: "PurchaseOrder", Number: "PO-1"}, "tester", nil)
	s.Require().NoError(err)

	s.Require().NoError(s.repo.ApplyMovements(s.ctx, []domain.MovementPair{
		{Level: level, Movement: first},
		{Level: level, Movement: second},
	}))

	s.EqualValues(1, level.Version, "one guarded write per distinct level")

	stored, err := s.repo.FindLevel(s.ctx, itemID, warehouseID, nil)
	s.Require().NoError(err)
	s.EqualValues(1, stored.Version)
	s.True(stored.Quantity.Equal(decimal.NewFromInt(150)))

	_, total, err := s.repo.ListMovements(s.ctx, domain.MovementFilter{Page: 1, PageSize: 10})
	s.Require().NoError(err)
	s.EqualValues(2, total, "every movement still lands in the ledger")
}

func (s *MemoryStockRepositorySuite) TestStaleVersionConflicts() {
	itemID, warehouseID := uuid.New(), uuid.New()
	s.receive(itemID, warehouseID, 10, 1, "PO-1")

	stale, err := s.repo.FindLevel(s.ctx, itemID, warehouseID, nil)
	s.Require().NoError(err)

	// another writer advances the row
	s.receive(itemID, warehouseID, 5, 1, "PO-2")

	s.Require().NoError(stale.IssueStock(decimal.NewFromInt(1)))
	movement, err := domain.NewIssue(stale, decimal.NewFromInt(1), domain.MovementRef{Type: "Sale", Number: "SO-1"}, "tester")
	s.Require().NoError(err)

	err = s.repo.ApplyMovements(s.ctx, []domain.MovementPair{{Level: stale, Movement: movement}})
	s.ErrorIs(err, domain.ErrConcurrencyConflict)

	// the failed batch must not leave partial rows behind
	_, total, err := s.repo.ListMovements(s.ctx, domain.MovementFilter{Page: 1, PageSize: 10})
	s.Require().NoError(err)
	s.EqualValues(2, total)
}

func (s *MemoryStockRepositorySuite) TestConcurrentInsertConflicts() {
	itemID, warehouseID := uuid.New(), uuid.New()

	first, err := domain.NewStockLevel(itemID, warehouseID, nil, decimal.NewFromInt(1), decimal.Zero)
	s.Require().NoError(err)
	second, err := domain.NewStockLevel(itemID, warehouseID, nil, decimal.NewFromInt(2), decimal.Zero)
	s.Require().NoError(err)

	s.Require().NoError(s.repo.SaveLevel(s.ctx, first))
	s.ErrorIs(s.repo.SaveLevel(s.ctx, second), domain.ErrConcurrencyConflict)
}

func (s *MemoryStockRepositorySuite) TestSaveLevelPersistsReservationWithoutMovement() {
	itemID, warehouseID := uuid.New(), uuid.New()
	s.receive(itemID, warehouseID, 10, 1, "PO-1")

	level, err := s.repo.FindLevel(s.ctx, itemID, warehouseID, nil)
	s.Require().NoError(err)
	s.Require().NoError(level.ReserveStock(decimal.NewFromInt(4)))
	s.Require().NoError(s.repo.SaveLevel(s.ctx, level))

	reloaded, err := s.repo.FindLevel(s.ctx, itemID, warehouseID, nil)
	s.Require().NoError(err)
	s.True(reloaded.ReservedQuantity.Equal(decimal.NewFromInt(4)))

	_, total, err := s.repo.ListMovements(s.ctx, domain.MovementFilter{Page: 1, PageSize: 10})
	s.Require().NoError(err)
	s.EqualValues(1, total, "reservations write no ledger rows")
}

func (s *MemoryStockRepositorySuite) TestBinIsPartOfTheKey() {
	itemID, warehouseID, binID := uuid.New(), uuid.New(), uuid.New()

	level, err := domain.NewStockLevel(itemID, warehouseID, &binID, decimal.NewFromInt(5), decimal.Zero)
	s.Require().NoError(err)
	s.Require().NoError(s.repo.SaveLevel(s.ctx, level))

	_, err = s.repo.FindLevel(s.ctx, itemID, warehouseID, nil)
	s.ErrorIs(err, domain.ErrNotFound)

	found, err := s.repo.FindLevel(s.ctx, itemID, warehouseID, &binID)
	s.Require().NoError(err)
	s.True(found.Quantity.Equal(decimal.NewFromInt(5)))
}

func (s *MemoryStockRepositorySuite) TestListMovementsFiltersAndPages() {
	warehouseID := uuid.New()
	itemA, itemB := uuid.New(), uuid.New()
	s.receive(itemA, warehouseID, 10, 1, "PO-A1")
	s.receive(itemA, warehouseID, 20, 1, "PO-A2")
	s.receive(itemB, warehouseID, 30, 1, "PO-B1")

	movements, total, err := s.repo.ListMovements(s.ctx, domain.MovementFilter{
		ItemID:   &itemA,
		Page:     1,
		PageSize: 1,
		SortBy:   domain.SortByQuantity,
	})
	s.Require().NoError(err)
	s.EqualValues(2, total)
	s.Require().Len(movements, 1)
	s.True(movements[0].Quantity.Equal(decimal.NewFromInt(20)), "desc is the default order")

	movements, _, err = s.repo.ListMovements(s.ctx, domain.MovementFilter{
		ReferenceNumber: "PO-B",
		Page:            1,
		PageSize:        10,
	})
	s.Require().NoError(err)
	s.Require().Len(movements, 1)
	s.Equal("PO-B1", movements[0].ReferenceNumber)
}

func (s *MemoryStockRepositorySuite) TestSummarizeMovements() {
	warehouseID := uuid.New()
	itemID := uuid.New()
	level := s.receive(itemID, warehouseID, 100, 10, "PO-1")

	s.Require().NoError(level.IssueStock(decimal.NewFromInt(40)))
	issue, err := domain.NewIssue(level, decimal.NewFromInt(40), domain.MovementRef{Type: "Sale", Number: "SO-1"}, "tester")
	s.Require().NoError(err)
	s.Require().NoError(s.repo.ApplyMovements(s.ctx, []domain.MovementPair{{Level: level, Movement: issue}}))

	s.Require().NoError(level.AdjustStock(decimal.NewFromInt(-10)))
	adj, err := domain.NewAdjustment(level, decimal.NewFromInt(-10), domain.MovementRef{Type: "StockAdjustment", Number: "ADJ-1"}, "tester")
	s.Require().NoError(err)
	s.Require().NoError(s.repo.ApplyMovements(s.ctx, []domain.MovementPair{{Level: level, Movement: adj}}))

	summary, err := s.repo.SummarizeMovements(s.ctx, domain.MovementFilter{ItemID: &itemID})
	s.Require().NoError(err)
	s.True(summary.TotalReceived.Equal(decimal.NewFromInt(100)))
	s.True(summary.TotalIssued.Equal(decimal.NewFromInt(40)), "issued total is a magnitude")
	s.True(summary.TotalAdjusted.Equal(decimal.NewFromInt(-10)))
	s.True(summary.NetMovement.Equal(decimal.NewFromInt(50)))
}

func TestMemoryStockRepositorySuite(t *testing.T) {
	suite.Run(t, new(MemoryStockRepositorySuite))
}

func TestMemoryWarehouseRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryWarehouseRepository()

	group, err := domain.NewWarehouse("GRP", "Region", "ACME")
	require.NoError(t, err)
	require.NoError(t, group.SetAsGroup())
	leaf, err := domain.NewWarehouse("WH-1", "Main", "ACME")
	require.NoError(t, err)
	disabled, err := domain.NewWarehouse("WH-2", "Closed", "ACME")
	require.NoError(t, err)
	require.NoError(t, disabled.Disable())

	for _, w := range []*domain.Warehouse{group, leaf, disabled} {
		require.NoError(t, repo.Save(ctx, w))
	}

	found, err := repo.FindByCode(ctx, "WH-1")
	require.NoError(t, err)
	require.Equal(t, leaf.ID, found.ID)

	_, err = repo.FindByCode(ctx, "NOPE")
	require.ErrorIs(t, err, domain.ErrNotFound)

	active, err := repo.FindAllActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1, "groups and disabled warehouses are not active targets")
	require.Equal(t, "WH-1", active[0].Code)
}

func TestMemoryWarehouseRepositoryTreeRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryWarehouseRepository()

	root, err := domain.NewWarehouse("GRP", "Region", "ACME")
	require.NoError(t, err)
	require.NoError(t, root.SetAsGroup())
	child, err := domain.NewWarehouse("WH-1", "Main", "ACME")
	require.NoError(t, err)
	require.NoError(t, root.AddChildWarehouse(child))

	tree, err := domain.NewTree(root, child)
	require.NoError(t, err)
	require.NoError(t, repo.SaveTree(ctx, tree))

	loaded, err := repo.LoadTree(ctx)
	require.NoError(t, err)
	require.NoError(t, loaded.Validate())

	node, err := loaded.Get(child.ID)
	require.NoError(t, err)
	require.Equal(t, 2, node.Lft)
	require.Equal(t, 3, node.Rgt)
}
