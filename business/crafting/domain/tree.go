package domain

import (
	"strconv"
	"strings"
	"time"
)

// Variant selects plain or bank-stock aware costing.
type Variant int

const (
	VariantPlain Variant = iota
	VariantStock
)

func (v Variant) String() string {
	if v == VariantStock {
		return "stock"
	}
	return "plain"
}

// Path addresses a node by the item ids from the root list downward.
type Path []int

// Child extends the path by one segment without aliasing p.
func (p Path) Child(itemID int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = itemID
	return out
}

// Equal reports segment-wise equality.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, id := range p {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "/")
}

// ParsePath reads the "12/34/56" form produced by String.
func ParsePath(s string) (Path, bool) {
	s = strings.Trim(s, "/")
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, "/")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, false
		}
		p = append(p, id)
	}
	return p, true
}

// RecipeTree is the forest of root ingredients for one open recipe view.
type RecipeTree struct {
	RecipeID           string
	Server             string
	ResultItemID       int
	ResultName         string
	SellPrice          Price
	SellPriceUpdatedAt time.Time

	Variant   Variant
	ProfileID string

	// QuickEstimate is the backend's own cascading estimate. It is shown
	// as-is and never reconciled with the client aggregate.
	QuickEstimate Price

	TotalIngredientCount int
	KnownPriceCount      int

	Roots []*IngredientNode
}

func (t *RecipeTree) withRoots(roots []*IngredientNode) *RecipeTree {
	c := *t
	c.Roots = roots
	return &c
}

// UpdateAtPath applies transform to the node at path and rebuilds its
// ancestors. Off-path siblings keep their identity. An unresolvable path,
// or a transform that returns the node unchanged, yields tree itself.
func UpdateAtPath(tree *RecipeTree, path Path, transform func(*IngredientNode) *IngredientNode) *RecipeTree {
	if tree == nil || len(path) == 0 || transform == nil {
		return tree
	}
	roots, ok := updateLevel(tree.Roots, path, transform)
	if !ok {
		return tree
	}
	return tree.withRoots(roots)
}

func updateLevel(nodes []*IngredientNode, path Path, transform func(*IngredientNode) *IngredientNode) ([]*IngredientNode, bool) {
	idx := indexOf(nodes, path[0])
	if idx < 0 {
		return nodes, false
	}
	cur := nodes[idx]

	var next *IngredientNode
	if len(path) == 1 {
		next = transform(cur)
		if next == nil || next == cur {
			return nodes, false
		}
	} else {
		children, ok := updateLevel(cur.Children, path[1:], transform)
		if !ok {
			return nodes, false
		}
		next = cur.clone()
		next.Children = children
	}

	out := make([]*IngredientNode, len(nodes))
	copy(out, nodes)
	out[idx] = next
	return out, true
}

func indexOf(nodes []*IngredientNode, itemID int) int {
	for i, n := range nodes {
		if n.ItemID == itemID {
			return i
		}
	}
	return -1
}

// NodeAt resolves path without modifying the tree.
func NodeAt(tree *RecipeTree, path Path) (*IngredientNode, bool) {
	if tree == nil || len(path) == 0 {
		return nil, false
	}
	level := tree.Roots
	var n *IngredientNode
	for _, id := range path {
		idx := indexOf(level, id)
		if idx < 0 {
			return nil, false
		}
		n = level[idx]
		level = n.Children
	}
	return n, true
}

// Walk visits nodes depth first, including children of collapsed nodes.
// Returning false from fn skips that node's subtree.
func Walk(tree *RecipeTree, fn func(path Path, n *IngredientNode) bool) {
	if tree == nil {
		return
	}
	walkLevel(tree.Roots, nil, fn)
}

func walkLevel(nodes []*IngredientNode, prefix Path, fn func(Path, *IngredientNode) bool) {
	for _, n := range nodes {
		p := prefix.Child(n.ItemID)
		if fn(p, n) {
			walkLevel(n.Children, p, fn)
		}
	}
}

// MapNodes rewrites every node bottom-up. fn sees the node with its
// children already rewritten. Untouched subtrees keep their identity and
// a tree with no changes is returned as is.
func MapNodes(tree *RecipeTree, fn func(*IngredientNode) *IngredientNode) *RecipeTree {
	if tree == nil {
		return nil
	}
	roots, changed := mapLevel(tree.Roots, fn)
	if !changed {
		return tree
	}
	return tree.withRoots(roots)
}

func mapLevel(nodes []*IngredientNode, fn func(*IngredientNode) *IngredientNode) ([]*IngredientNode, bool) {
	var out []*IngredientNode
	for i, n := range nodes {
		next := n
		if children, changed := mapLevel(n.Children, fn); changed {
			next = n.clone()
			next.Children = children
		}
		if mapped := fn(next); mapped != nil {
			next = mapped
		}
		if next != n && out == nil {
			out = make([]*IngredientNode, len(nodes))
			copy(out, nodes[:i])
		}
		if out != nil {
			out[i] = next
		}
	}
	if out == nil {
		return nodes, false
	}
	return out, true
}
