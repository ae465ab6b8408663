package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Bin is a leaf storage location inside a non-group warehouse. Quantities
// are not stored here; the bin id is a dimension of the stock level key.
type Bin struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	WarehouseID uuid.UUID `json:"warehouse_id" gorm:"type:uuid;not null;index"`
	Code        string    `json:"code" gorm:"not null"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Bin) TableName() string {
	return "warehouse_bins"
}

// NewBin creates a bin for the given warehouse
func NewBin(warehouseID uuid.UUID, code, description string) (*Bin, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: bin code is required", ErrValidation)
	}
	return &Bin{
		ID:          uuid.New(),
		WarehouseID: warehouseID,
		Code:        code,
		Description: description,
	}, nil
}

// Warehouse is a node in the nested-set hierarchy. Group warehouses only
// organize other warehouses; leaf warehouses hold bins and accept stock.
// Lft/Rgt are owned by Tree.Rebuild, individual nodes never renumber
// themselves.
type Warehouse struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Code      string     `json:"code" gorm:"not null;uniqueIndex"`
	Name      string     `json:"name" gorm:"not null"`
	Company   string     `json:"company"`
	IsGroup   bool       `json:"is_group" gorm:"not null;default:false"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty" gorm:"type:uuid;index"`
	Lft       int        `json:"lft" gorm:"not null;default:0;index"`
	Rgt       int        `json:"rgt" gorm:"not null;default:0;index"`
	Disabled  bool       `json:"disabled" gorm:"not null;default:false"`
	Bins      []Bin      `json:"bins,omitempty" gorm:"foreignKey:WarehouseID"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	events []Event `gorm:"-" json:"-"`
}

// TableName specifies the table name
func (Warehouse) TableName() string {
	return "warehouses"
}

// NewWarehouse creates a leaf warehouse
func NewWarehouse(code, name, company string) (*Warehouse, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: warehouse code is required", ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: warehouse name is required", ErrValidation)
	}

	w := &Warehouse{
		ID:      uuid.New(),
		Code:    code,
		Name:    name,
		Company: company,
	}
	w.record(EventWarehouseCreated, map[string]string{
		"warehouse_id": w.ID.String(),
		"code":         code,
	})
	return w, nil
}

// SetAsGroup converts the warehouse into a group node. A warehouse holding
// bins cannot become a group.
func (w *Warehouse) SetAsGroup() error {
	if len(w.Bins) > 0 {
		return fmt.Errorf("%w: warehouse %s holds bins and cannot become a group", ErrStructuralInvariant, w.Code)
	}
	w.IsGroup = true
	return nil
}

// SetParentWarehouse points the node at a new parent.
func (w *Warehouse) SetParentWarehouse(parentID uuid.UUID) error {
	if parentID == w.ID {
		return fmt.Errorf("%w: warehouse %s cannot be its own parent", ErrStructuralInvariant, w.Code)
	}
	w.ParentID = &parentID
	return nil
}

// AddChildWarehouse attaches a child node. Only group warehouses can hold
// children.
func (w *Warehouse) AddChildWarehouse(child *Warehouse) error {
	if !w.IsGroup {
		return fmt.Errorf("%w: warehouse %s is not a group", ErrStructuralInvariant, w.Code)
	}
	if child == nil {
		return fmt.Errorf("%w: child warehouse is required", ErrValidation)
	}
	if child.ID == w.ID {
		return fmt.Errorf("%w: warehouse %s cannot be its own child", ErrStructuralInvariant, w.Code)
	}
	return child.SetParentWarehouse(w.ID)
}

// RemoveChildWarehouse detaches a child node, making it a root.
func (w *Warehouse) RemoveChildWarehouse(child *Warehouse) error {
	if child == nil || child.ParentID == nil || *child.ParentID != w.ID {
		return fmt.Errorf("%w: warehouse is not a child of %s", ErrNotFound, w.Code)
	}
	child.ParentID = nil
	return nil
}

// AddBin adds a storage bin. Group warehouses hold no bins and bin codes
// are unique per warehouse.
func (w *Warehouse) AddBin(bin Bin) error {
	if w.IsGroup {
		return fmt.Errorf("%w: group warehouse %s cannot hold bins", ErrStructuralInvariant, w.Code)
	}
	for _, existing := range w.Bins {
		if existing.Code == bin.Code {
			return fmt.Errorf("%w: bin code %s already exists in warehouse %s", ErrStructuralInvariant, bin.Code, w.Code)
		}
	}
	bin.WarehouseID = w.ID
	w.Bins = append(w.Bins, bin)
	return nil
}

// RemoveBin removes a bin by id.
func (w *Warehouse) RemoveBin(id uuid.UUID) error {
	for i, bin := range w.Bins {
		if bin.ID == id {
			w.Bins = append(w.Bins[:i], w.Bins[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: bin %s in warehouse %s", ErrNotFound, id, w.Code)
}

// UpdateTreeStructure sets the nested-set range. Called only by
// Tree.Rebuild.
func (w *Warehouse) UpdateTreeStructure(lft, rgt int) error {
	if lft < 0 || rgt < 0 || lft >= rgt {
		return fmt.Errorf("%w: invalid tree bounds lft=%d rgt=%d", ErrValidation, lft, rgt)
	}
	w.Lft = lft
	w.Rgt = rgt
	return nil
}

// Disable marks the warehouse as not accepting stock.
func (w *Warehouse) Disable() error {
	if w.Disabled {
		return fmt.Errorf("%w: warehouse %s is already disabled", ErrInvalidState, w.Code)
	}
	w.Disabled = true
	w.record(EventWarehouseDisabled, map[string]string{"warehouse_id": w.ID.String()})
	return nil
}

// Enable re-activates the warehouse.
func (w *Warehouse) Enable() error {
	if !w.Disabled {
		return fmt.Errorf("%w: warehouse %s is already enabled", ErrInvalidState, w.Code)
	}
	w.Disabled = false
	w.record(EventWarehouseEnabled, map[string]string{"warehouse_id": w.ID.String()})
	return nil
}

// IsLeaf reports whether the node has no descendants in the nested-set
// numbering.
func (w *Warehouse) IsLeaf() bool {
	return w.Rgt-w.Lft == 1
}

// IsRoot reports whether the node has no parent.
func (w *Warehouse) IsRoot() bool {
	return w.ParentID == nil
}

// CanAcceptStock reports whether movements may target this warehouse.
func (w *Warehouse) CanAcceptStock() bool {
	return !w.Disabled && !w.IsGroup
}

// Events returns the collected outbox events.
func (w *Warehouse) Events() []Event {
	return w.events
}

// ClearEvents empties the outbox.
func (w *Warehouse) ClearEvents() {
	w.events = nil
}

func (w *Warehouse) record(name string, fields map[string]string) {
	w.events = append(w.events, newEvent(name, fields))
}
