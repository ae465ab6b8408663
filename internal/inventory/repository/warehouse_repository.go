package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tair/stock-ledger/internal/inventory/domain"
)

// GormWarehouseRepository persists the warehouse hierarchy.
type GormWarehouseRepository struct {
	db *gorm.DB
}

// NewGormWarehouseRepository creates a new warehouse repository
func NewGormWarehouseRepository(db *gorm.DB) *GormWarehouseRepository {
	return &GormWarehouseRepository{db: db}
}

func (r *GormWarehouseRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Warehouse{}, &domain.Bin{})
}

func (r *GormWarehouseRepository) Save(ctx context.Context, w *domain.Warehouse) error {
	err := r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(w).Error
	if err != nil {
		return fmt.Errorf("save warehouse: %w", err)
	}
	return nil
}

func (r *GormWarehouseRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Warehouse, error) {
	var w domain.Warehouse
	err := r.db.WithContext(ctx).Preload("Bins").First(&w, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find warehouse: %w", err)
	}
	return &w, nil
}

func (r *GormWarehouseRepository) FindByCode(ctx context.Context, code string) (*domain.Warehouse, error) {
	var w domain.Warehouse
	err := r.db.WithContext(ctx).Preload("Bins").First(&w, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find warehouse by code: %w", err)
	}
	return &w, nil
}

func (r *GormWarehouseRepository) FindAllActive(ctx context.Context) ([]domain.Warehouse, error) {
	var warehouses []domain.Warehouse
	err := r.db.WithContext(ctx).
		Where("disabled = ? AND is_group = ?", false, false).
		Order("code").
		Find(&warehouses).Error
	if err != nil {
		return nil, fmt.Errorf("find active warehouses: %w", err)
	}
	return warehouses, nil
}

// SaveTree persists every node of a renumbered tree in one serializable
// transaction. The nested-set invariant spans the whole subtree, so a
// partially applied renumbering would corrupt ordering for every
// descendant.
func (r *GormWarehouseRepository) SaveTree(ctx context.Context, t *domain.Tree) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, w := range t.All() {
			if err := tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(w).Error; err != nil {
				return fmt.Errorf("save warehouse %s: %w", w.Code, err)
			}
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (r *GormWarehouseRepository) LoadTree(ctx context.Context) (*domain.Tree, error) {
	var warehouses []domain.Warehouse
	err := r.db.WithContext(ctx).Preload("Bins").Order("lft").Find(&warehouses).Error
	if err != nil {
		return nil, fmt.Errorf("load warehouses: %w", err)
	}
	nodes := make([]*domain.Warehouse, len(warehouses))
	for i := range warehouses {
		nodes[i] = &warehouses[i]
	}
	return domain.NewTree(nodes...)
}
