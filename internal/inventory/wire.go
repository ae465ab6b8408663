//go:build wireinject
// +build wireinject

package inventory

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/tair/stock-ledger/internal/inventory/delivery/http"
	"github.com/tair/stock-ledger/internal/inventory/metrics"
)

// InitializeHTTPHandler initializes the HTTP handler with all dependencies
func InitializeHTTPHandler(db *gorm.DB, m *metrics.Metrics) (*http.StockHandler, error) {
	wire.Build(
		RepositorySet,
		QuerySet,
		CommandSet,
		http.NewStockHandler,
	)
	return nil, nil
}
