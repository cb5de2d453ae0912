// Package domain holds the recipe tree model and the pure cost math over it.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExpansionState is the load/expand lifecycle of one ingredient position.
type ExpansionState int

const (
	// Unloaded nodes have no children yet. Leaves stay Unloaded forever.
	Unloaded ExpansionState = iota
	Loading
	Collapsed
	Expanded
)

func (s ExpansionState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Collapsed:
		return "collapsed"
	case Expanded:
		return "expanded"
	default:
		return "unknown"
	}
}

// MarshalText lets the state travel as a string in JSON.
func (s ExpansionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ExpansionState) UnmarshalText(b []byte) error {
	for _, st := range []ExpansionState{Unloaded, Loading, Collapsed, Expanded} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown expansion state %q", b)
}

// Price is a market price that may be unknown. The zero value is unknown.
type Price struct {
	Value decimal.Decimal
	Known bool
}

// KnownPrice wraps a known value.
func KnownPrice(v decimal.Decimal) Price {
	return Price{Value: v, Known: true}
}

// UnknownPrice is the explicit missing-price state.
func UnknownPrice() Price {
	return Price{}
}

func (p Price) String() string {
	if !p.Known {
		return "?"
	}
	return p.Value.StringFixed(2)
}

// MarshalJSON encodes unknown prices as null.
func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Known {
		return []byte("null"), nil
	}
	return []byte(`"` + p.Value.String() + `"`), nil
}

func (p *Price) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = UnknownPrice()
		return nil
	}
	var v decimal.Decimal
	if err := v.UnmarshalJSON(b); err != nil {
		return err
	}
	*p = KnownPrice(v)
	return nil
}

// IngredientNode is one ingredient position in a recipe tree. Nodes are
// never mutated after construction; every change produces a new node.
type IngredientNode struct {
	ItemID           int
	Name             string
	IconRef          string
	RequiredQuantity int
	UnitPrice        Price
	PriceUpdatedAt   time.Time
	SubRecipeRef     string
	OwnedQuantity    int
	State            ExpansionState
	Children         []*IngredientNode
}

// IsExpandable reports whether the ingredient has its own recipe.
func (n *IngredientNode) IsExpandable() bool {
	return n.SubRecipeRef != ""
}

// IsLoaded reports whether children have been fetched.
func (n *IngredientNode) IsLoaded() bool {
	return n.State == Collapsed || n.State == Expanded
}

// IsExpanded reports whether the node is priced from its children.
func (n *IngredientNode) IsExpanded() bool {
	return n.State == Expanded && len(n.Children) > 0
}

func (n *IngredientNode) clone() *IngredientNode {
	c := *n
	return &c
}

// WithState returns a copy in state s.
func (n *IngredientNode) WithState(s ExpansionState) *IngredientNode {
	if n.State == s {
		return n
	}
	c := n.clone()
	c.State = s
	return c
}

// WithChildren returns a copy holding children in state s.
func (n *IngredientNode) WithChildren(children []*IngredientNode, s ExpansionState) *IngredientNode {
	c := n.clone()
	c.Children = children
	c.State = s
	return c
}

// WithPrice returns a copy priced at p.
func (n *IngredientNode) WithPrice(p Price, at time.Time) *IngredientNode {
	c := n.clone()
	c.UnitPrice = p
	c.PriceUpdatedAt = at
	return c
}

// WithOwned returns a copy holding qty owned units.
func (n *IngredientNode) WithOwned(qty int) *IngredientNode {
	if n.OwnedQuantity == qty {
		return n
	}
	c := n.clone()
	c.OwnedQuantity = qty
	return c
}
