package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tair/stock-ledger/internal/inventory/domain"
)

// GormStockRepository persists stock levels and the movement ledger in
// PostgreSQL.
type GormStockRepository struct {
	db *gorm.DB
}

// NewGormStockRepository creates a new stock repository
func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

func (r *GormStockRepository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&domain.StockLevel{}, &domain.StockMovement{}, &domain.Batch{}); err != nil {
		return err
	}
	// Postgres unique indexes treat NULLs as distinct, so one index over
	// (item_id, warehouse_id, bin_id) would let two bin-less rows coexist
	// for the same key. A partial index pair covers both key shapes.
	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_levels_key_bin
			ON stock_levels (item_id, warehouse_id, bin_id) WHERE bin_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_levels_key_no_bin
			ON stock_levels (item_id, warehouse_id) WHERE bin_id IS NULL`,
	} {
		if err := r.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create stock level key index: %w", err)
		}
	}
	return nil
}

func (r *GormStockRepository) FindLevel(ctx context.Context, itemID, warehouseID uuid.UUID, binID *uuid.UUID) (*domain.StockLevel, error) {
	query := r.db.WithContext(ctx).
		Where("item_id = ? AND warehouse_id = ?", itemID, warehouseID)
	if binID != nil {
		query = query.Where("bin_id = ?", *binID)
	} else {
		query = query.Where("bin_id IS NULL")
	}

	var level domain.StockLevel
	if err := query.First(&level).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find stock level: %w", err)
	}
	return &level, nil
}

// ApplyMovements writes every pair in one transaction. Levels with version
// 0 are inserted; existing levels are updated with a version guard. A zero
// row count on the guarded update, or a unique violation on insert (two
// lazy creators racing), both surface as ErrConcurrencyConflict so the
// caller re-reads and retries.
//
// Several lines of one event can hit the same key; those pairs share one
// *StockLevel carrying the cumulative result, so each distinct level is
// written exactly once no matter how many movements reference it.
func (r *GormStockRepository) ApplyMovements(ctx context.Context, pairs []domain.MovementPair) error {
	if len(pairs) == 0 {
		return nil
	}

	levels := distinctLevels(pairs)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, level := range levels {
			if err := writeLevel(tx, level); err != nil {
				return err
			}
		}
		for _, pair := range pairs {
			if pair.Batch != nil {
				if err := tx.Create(pair.Batch).Error; err != nil {
					return fmt.Errorf("create batch: %w", err)
				}
			}
			if err := tx.Create(pair.Movement).Error; err != nil {
				return fmt.Errorf("append movement: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Versions are bumped on the structs only after the commit succeeded;
	// a rolled-back caller re-reads everything anyway.
	for _, level := range levels {
		if level.Version == 0 {
			level.Version = 1
		} else {
			level.Version++
		}
	}
	return nil
}

// distinctLevels returns each *StockLevel in pairs once, in first-seen
// order.
func distinctLevels(pairs []domain.MovementPair) []*domain.StockLevel {
	seen := make(map[*domain.StockLevel]bool, len(pairs))
	levels := make([]*domain.StockLevel, 0, len(pairs))
	for _, pair := range pairs {
		if seen[pair.Level] {
			continue
		}
		seen[pair.Level] = true
		levels = append(levels, pair.Level)
	}
	return levels
}

func (r *GormStockRepository) SaveLevel(ctx context.Context, level *domain.StockLevel) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeLevel(tx, level)
	})
	if err != nil {
		return err
	}
	if level.Version == 0 {
		level.Version = 1
	} else {
		level.Version++
	}
	return nil
}

func writeLevel(tx *gorm.DB, level *domain.StockLevel) error {
	if level.Version == 0 {
		insert := *level
		insert.Version = 1
		if err := tx.Create(&insert).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConcurrencyConflict
			}
			return fmt.Errorf("create stock level: %w", err)
		}
		return nil
	}

	result := tx.Model(&domain.StockLevel{}).
		Where("id = ? AND version = ?", level.ID, level.Version).
		Updates(map[string]interface{}{
			"quantity":           level.Quantity,
			"reserved_quantity":  level.ReservedQuantity,
			"unit_cost":          level.UnitCost,
			"last_movement_date": level.LastMovementDate,
			"version":            level.Version + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("update stock level: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrConcurrencyConflict
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// 23505 is the postgres unique_violation code; the driver error string
	// carries it.
	return err != nil && strings.Contains(err.Error(), "23505")
}

func (r *GormStockRepository) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, int64, error) {
	query := applyMovementFilter(r.db.WithContext(ctx).Model(&domain.StockMovement{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count movements: %w", err)
	}

	offset := (filter.Page - 1) * filter.PageSize
	var movements []domain.StockMovement
	err := query.
		Order(orderClause(filter.SortBy, filter.SortOrder)).
		Offset(offset).
		Limit(filter.PageSize).
		Find(&movements).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list movements: %w", err)
	}
	return movements, total, nil
}

func (r *GormStockRepository) SummarizeMovements(ctx context.Context, filter domain.MovementFilter) (domain.MovementSummary, error) {
	var summary domain.MovementSummary
	err := applyMovementFilter(r.db.WithContext(ctx).Model(&domain.StockMovement{}), filter).
		Select(`
			COALESCE(SUM(CASE WHEN movement_type = 'receive' THEN quantity ELSE 0 END), 0) AS total_received,
			COALESCE(SUM(CASE WHEN movement_type = 'issue' THEN -quantity ELSE 0 END), 0) AS total_issued,
			COALESCE(SUM(CASE WHEN movement_type = 'adjust' THEN quantity ELSE 0 END), 0) AS total_adjusted,
			COALESCE(SUM(CASE WHEN movement_type = 'transfer' THEN ABS(quantity) ELSE 0 END), 0) AS total_transferred,
			COALESCE(SUM(quantity), 0) AS net_movement`).
		Scan(&summary).Error
	if err != nil {
		return domain.MovementSummary{}, fmt.Errorf("summarize movements: %w", err)
	}
	return summary, nil
}

func applyMovementFilter(query *gorm.DB, filter domain.MovementFilter) *gorm.DB {
	if filter.ItemID != nil {
		query = query.Where("item_id = ?", *filter.ItemID)
	}
	if filter.WarehouseID != nil {
		query = query.Where("warehouse_id = ?", *filter.WarehouseID)
	}
	if filter.BinID != nil {
		query = query.Where("bin_id = ?", *filter.BinID)
	}
	if filter.MovementType != nil {
		query = query.Where("movement_type = ?", *filter.MovementType)
	}
	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}
	if filter.ReferenceNumber != "" {
		query = query.Where("reference_number LIKE ?", "%"+filter.ReferenceNumber+"%")
	}
	if filter.FromDate != nil {
		query = query.Where("movement_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("movement_date <= ?", *filter.ToDate)
	}
	return query
}

func orderClause(sortBy domain.SortField, order domain.SortOrder) string {
	column := map[domain.SortField]string{
		domain.SortByDate:          "movement_date",
		domain.SortByItemName:      "item_name",
		domain.SortByWarehouseName: "warehouse_name",
		domain.SortByQuantity:      "quantity",
		domain.SortByMovementType:  "movement_type",
	}[sortBy]
	if column == "" {
		column = "movement_date"
	}
	direction := "DESC"
	if order == domain.SortAsc {
		direction = "ASC"
	}
	// id tiebreaker keeps pagination stable across rows with equal keys
	return fmt.Sprintf("%s %s, id ASC", column, direction)
}
