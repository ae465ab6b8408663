package domain

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Tree is an id-indexed arena of warehouses that owns the nested-set
// numbering. All renumbering goes through Rebuild, which recomputes Lft/Rgt
// for the entire forest in one pass; nodes never adjust their own ranges.
// Persisting a rebuilt tree must happen under serializable isolation (see
// WarehouseRepository.SaveTree) because the invariant spans every row of the
// affected subtree.
type Tree struct {
	nodes map[uuid.UUID]*Warehouse
}

// NewTree builds a tree arena over the given warehouses and renumbers it.
func NewTree(warehouses ...*Warehouse) (*Tree, error) {
	t := &Tree{nodes: make(map[uuid.UUID]*Warehouse, len(warehouses))}
	for _, w := range warehouses {
		if _, ok := t.nodes[w.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate warehouse id %s", ErrStructuralInvariant, w.ID)
		}
		t.nodes[w.ID] = w
	}
	if err := t.Rebuild(); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns the node with the given id.
func (t *Tree) Get(id uuid.UUID) (*Warehouse, error) {
	w, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: warehouse %s", ErrNotFound, id)
	}
	return w, nil
}

// All returns every node in the arena, ordered by Lft.
func (t *Tree) All() []*Warehouse {
	out := make([]*Warehouse, 0, len(t.nodes))
	for _, w := range t.nodes {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lft < out[j].Lft })
	return out
}

// Add inserts a new node into the arena and renumbers.
func (t *Tree) Add(w *Warehouse) error {
	if _, ok := t.nodes[w.ID]; ok {
		return fmt.Errorf("%w: warehouse %s already in tree", ErrStructuralInvariant, w.ID)
	}
	if w.ParentID != nil {
		if _, ok := t.nodes[*w.ParentID]; !ok {
			return fmt.Errorf("%w: parent %s", ErrNotFound, *w.ParentID)
		}
	}
	t.nodes[w.ID] = w
	return t.Rebuild()
}

// AddChild attaches an existing node under a group parent and renumbers.
func (t *Tree) AddChild(parentID, childID uuid.UUID) error {
	parent, err := t.Get(parentID)
	if err != nil {
		return err
	}
	child, err := t.Get(childID)
	if err != nil {
		return err
	}
	if t.isDescendant(parentID, childID) {
		return fmt.Errorf("%w: warehouse %s is an ancestor of %s", ErrStructuralInvariant, child.Code, parent.Code)
	}
	if err := parent.AddChildWarehouse(child); err != nil {
		return err
	}
	return t.Rebuild()
}

// RemoveChild detaches a node from its parent, making it a root, and
// renumbers.
func (t *Tree) RemoveChild(childID uuid.UUID) error {
	child, err := t.Get(childID)
	if err != nil {
		return err
	}
	if child.ParentID == nil {
		return fmt.Errorf("%w: warehouse %s is already a root", ErrInvalidState, child.Code)
	}
	parent, err := t.Get(*child.ParentID)
	if err != nil {
		return err
	}
	if err := parent.RemoveChildWarehouse(child); err != nil {
		return err
	}
	return t.Rebuild()
}

// Move reparents a node and renumbers.
func (t *Tree) Move(childID, newParentID uuid.UUID) error {
	if childID == newParentID {
		return fmt.Errorf("%w: warehouse cannot be moved under itself", ErrStructuralInvariant)
	}
	return t.AddChild(newParentID, childID)
}

// Children returns the direct children of a node, ordered by code.
func (t *Tree) Children(id uuid.UUID) []*Warehouse {
	var out []*Warehouse
	for _, w := range t.nodes {
		if w.ParentID != nil && *w.ParentID == id {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Roots returns the nodes without a parent, ordered by code.
func (t *Tree) Roots() []*Warehouse {
	var out []*Warehouse
	for _, w := range t.nodes {
		if w.ParentID == nil {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Subtree returns a node and all its descendants using the nested-set
// ranges, ordered by Lft.
func (t *Tree) Subtree(id uuid.UUID) ([]*Warehouse, error) {
	root, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	var out []*Warehouse
	for _, w := range t.nodes {
		if w.Lft >= root.Lft && w.Rgt <= root.Rgt {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lft < out[j].Lft })
	return out, nil
}

// Rebuild recomputes Lft/Rgt for the whole forest with a depth-first walk.
// Child order is by code so numbering is deterministic.
func (t *Tree) Rebuild() error {
	counter := 1
	visited := make(map[uuid.UUID]bool, len(t.nodes))

	var walk func(w *Warehouse) error
	walk = func(w *Warehouse) error {
		if visited[w.ID] {
			return fmt.Errorf("%w: cycle at warehouse %s", ErrStructuralInvariant, w.Code)
		}
		visited[w.ID] = true

		lft := counter
		counter++
		for _, child := range t.Children(w.ID) {
			if err := walk(child); err != nil {
				return err
			}
		}
		rgt := counter
		counter++
		return w.UpdateTreeStructure(lft, rgt)
	}

	for _, root := range t.Roots() {
		if err := walk(root); err != nil {
			return err
		}
	}
	if len(visited) != len(t.nodes) {
		return fmt.Errorf("%w: %d warehouses unreachable from any root", ErrStructuralInvariant, len(t.nodes)-len(visited))
	}
	return nil
}

// Validate checks the nested-set invariants: Lft < Rgt everywhere, and
// every child range strictly contained in its parent's range.
func (t *Tree) Validate() error {
	for _, w := range t.nodes {
		if w.Lft >= w.Rgt {
			return fmt.Errorf("%w: warehouse %s has lft=%d rgt=%d", ErrStructuralInvariant, w.Code, w.Lft, w.Rgt)
		}
		if w.ParentID == nil {
			continue
		}
		parent, ok := t.nodes[*w.ParentID]
		if !ok {
			return fmt.Errorf("%w: warehouse %s references missing parent", ErrStructuralInvariant, w.Code)
		}
		if w.Lft <= parent.Lft || w.Rgt >= parent.Rgt {
			return fmt.Errorf("%w: warehouse %s range (%d,%d) not contained in parent (%d,%d)",
				ErrStructuralInvariant, w.Code, w.Lft, w.Rgt, parent.Lft, parent.Rgt)
		}
	}
	return nil
}

// isDescendant reports whether candidate sits in the subtree rooted at
// ancestorOf.
func (t *Tree) isDescendant(candidate, ancestorOf uuid.UUID) bool {
	node, ok := t.nodes[candidate]
	for ok {
		if node.ParentID == nil {
			return false
		}
		if *node.ParentID == ancestorOf {
			return true
		}
		node, ok = t.nodes[*node.ParentID]
	}
	return false
}
