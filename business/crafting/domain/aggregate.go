package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Totals is the plain aggregate over one level of nodes.
type Totals struct {
	TotalCost  decimal.Decimal
	IsComplete bool
}

// Aggregate sums the cost of nodes, descending into expanded nodes only.
// Unknown prices contribute zero and mark the result incomplete.
func Aggregate(nodes []*IngredientNode) Totals {
	t := Totals{TotalCost: decimal.Zero, IsComplete: true}
	for _, n := range nodes {
		cost, complete := NodeCost(n)
		t.TotalCost = t.TotalCost.Add(cost)
		t.IsComplete = t.IsComplete && complete
	}
	return t
}

// NodeCost is the cost of one node under its current expansion choice.
func NodeCost(n *IngredientNode) (decimal.Decimal, bool) {
	qty := decimal.NewFromInt(int64(n.RequiredQuantity))
	if n.IsExpanded() {
		sub := Aggregate(n.Children)
		return sub.TotalCost.Mul(qty), sub.IsComplete
	}
	if !n.UnitPrice.Known {
		return decimal.Zero, false
	}
	return n.UnitPrice.Value.Mul(qty), true
}

// MarketCost prices the node at market regardless of expansion.
func MarketCost(n *IngredientNode) (decimal.Decimal, bool) {
	if !n.UnitPrice.Known {
		return decimal.Zero, false
	}
	return n.UnitPrice.Value.Mul(decimal.NewFromInt(int64(n.RequiredQuantity))), true
}

// Share is part as a percentage of total, zero when total is zero.
func Share(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred)
}

// StockTotals is the bank-stock aware aggregate over one level of nodes.
type StockTotals struct {
	TotalOwnedValue  decimal.Decimal
	TotalMissingCost decimal.Decimal
	IsComplete       bool
}

// TotalCost is owned plus missing, the full replacement cost.
func (s StockTotals) TotalCost() decimal.Decimal {
	return s.TotalOwnedValue.Add(s.TotalMissingCost)
}

// StockLine is the stock breakdown of a single node.
type StockLine struct {
	OwnedQuantity   int
	MissingQuantity int
	OwnedValue      decimal.Decimal
	// MissingCost follows the node's expansion choice.
	MissingCost decimal.Decimal
	// MarketMissingCost buys the missing units outright, for comparison.
	MarketMissingCost decimal.Decimal
	IsComplete        bool
}

// Savings is how much cheaper the current strategy is than buying.
func (l StockLine) Savings() decimal.Decimal {
	return l.MarketMissingCost.Sub(l.MissingCost)
}

// AggregateStock sums owned value and missing cost independently.
func AggregateStock(nodes []*IngredientNode) StockTotals {
	t := StockTotals{TotalOwnedValue: decimal.Zero, TotalMissingCost: decimal.Zero, IsComplete: true}
	for _, n := range nodes {
		line := NodeStock(n)
		t.TotalOwnedValue = t.TotalOwnedValue.Add(line.OwnedValue)
		t.TotalMissingCost = t.TotalMissingCost.Add(line.MissingCost)
		t.IsComplete = t.IsComplete && line.IsComplete
	}
	return t
}

// NodeStock computes owned value and missing cost for one node. An
// expanded node's missing cost is its children's missing cost times the
// required quantity; its owned value is its own.
func NodeStock(n *IngredientNode) StockLine {
	owned := n.OwnedQuantity
	if owned < 0 {
		owned = 0
	}
	usable := min(owned, n.RequiredQuantity)
	missing := max(n.RequiredQuantity-owned, 0)

	line := StockLine{
		OwnedQuantity:     owned,
		MissingQuantity:   missing,
		OwnedValue:        decimal.Zero,
		MissingCost:       decimal.Zero,
		MarketMissingCost: decimal.Zero,
		IsComplete:        true,
	}

	if n.UnitPrice.Known {
		line.OwnedValue = n.UnitPrice.Value.Mul(decimal.NewFromInt(int64(usable)))
		line.MarketMissingCost = n.UnitPrice.Value.Mul(decimal.NewFromInt(int64(missing)))
	}

	if n.IsExpanded() {
		sub := AggregateStock(n.Children)
		line.MissingCost = sub.TotalMissingCost.Mul(decimal.NewFromInt(int64(n.RequiredQuantity)))
		line.IsComplete = sub.IsComplete
		return line
	}

	if !n.UnitPrice.Known {
		line.IsComplete = missing == 0
		return line
	}
	line.MissingCost = line.MarketMissingCost
	return line
}
