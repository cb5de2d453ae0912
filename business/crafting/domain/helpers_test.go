package domain

import (
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
)

// Helper to build a priced leaf
func leaf(id, qty int, price string) *IngredientNode {
	n := &IngredientNode{ItemID: id, RequiredQuantity: qty}
	if price != "" {
		n.UnitPrice = KnownPrice(decimal.RequireFromString(price))
	}
	return n
}

// Helper to build a craftable node in the given state
func craftable(id, qty int, price string, state ExpansionState, children ...*IngredientNode) *IngredientNode {
	n := leaf(id, qty, price)
	n.SubRecipeRef = "r" + strconv.Itoa(id)
	n.State = state
	n.Children = children
	return n
}

func owned(n *IngredientNode, qty int) *IngredientNode {
	n.OwnedQuantity = qty
	return n
}

func assertDecimal(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", label, got, want)
	}
}
