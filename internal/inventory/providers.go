package inventory

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/tair/stock-ledger/internal/inventory/domain"
	"github.com/tair/stock-ledger/internal/inventory/repository"
	"github.com/tair/stock-ledger/internal/inventory/usecase/command"
	"github.com/tair/stock-ledger/internal/inventory/usecase/query"
)

// ProvideStockRepository provides the stock repository wrapped with tracing
func ProvideStockRepository(db *gorm.DB) domain.StockRepository {
	return repository.NewTracingStockRepository(repository.NewGormStockRepository(db))
}

// ProvideWarehouseRepository provides the warehouse repository
func ProvideWarehouseRepository(db *gorm.DB) domain.WarehouseRepository {
	return repository.NewGormWarehouseRepository(db)
}

// Wire sets
var RepositorySet = wire.NewSet(
	ProvideStockRepository,
)

var QuerySet = wire.NewSet(
	query.NewGetStockLevelHandler,
	query.NewGetAvailableQuantityHandler,
	query.NewMovementHistoryHandler,
)

var CommandSet = wire.NewSet(
	command.NewAdjustStockHandler,
	command.NewTransferStockHandler,
	command.NewReserveStockHandler,
	command.NewReleaseReservationHandler,
)
