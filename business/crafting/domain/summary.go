package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary is the opportunity view of a tree: cost against sell price.
type Summary struct {
	Variant        Variant
	SellPrice      Price
	TotalCost      decimal.Decimal
	Margin         decimal.Decimal
	ROI            decimal.Decimal
	SellPriceKnown bool
	// IsComplete is false when an ingredient price is missing and TotalCost
	// underestimates the craft. The sell price does not affect it.
	IsComplete bool

	// Stock-aware only. TotalCost above is OwnedValue + CostToComplete.
	OwnedValue       decimal.Decimal
	CostToComplete   decimal.Decimal
	MarginToComplete decimal.Decimal
	ROIToComplete    decimal.Decimal

	QuickEstimate        Price
	SellPriceFreshness   Freshness
	IngredientFreshness  Freshness
	KnownPriceCount      int
	TotalIngredientCount int
}

// Summarize derives margin and ROI from the tree's current aggregate.
// An unknown sell price leaves margin and ROI at zero.
func Summarize(tree *RecipeTree, now time.Time, policy FreshnessPolicy) Summary {
	s := Summary{
		Variant:              tree.Variant,
		SellPrice:            tree.SellPrice,
		SellPriceKnown:       tree.SellPrice.Known,
		QuickEstimate:        tree.QuickEstimate,
		SellPriceFreshness:   policy.Classify(tree.SellPriceUpdatedAt, now),
		IngredientFreshness:  visibleFreshness(tree.Roots, now, policy),
		KnownPriceCount:      tree.KnownPriceCount,
		TotalIngredientCount: tree.TotalIngredientCount,
		OwnedValue:           decimal.Zero,
		CostToComplete:       decimal.Zero,
		MarginToComplete:     decimal.Zero,
		ROIToComplete:        decimal.Zero,
	}

	if tree.Variant == VariantStock {
		st := AggregateStock(tree.Roots)
		s.OwnedValue = st.TotalOwnedValue
		s.CostToComplete = st.TotalMissingCost
		s.TotalCost = st.TotalCost()
		s.IsComplete = st.IsComplete
	} else {
		t := Aggregate(tree.Roots)
		s.TotalCost = t.TotalCost
		s.IsComplete = t.IsComplete
	}

	if !tree.SellPrice.Known {
		s.Margin = decimal.Zero
		s.ROI = decimal.Zero
		return s
	}

	s.Margin, s.ROI = marginROI(tree.SellPrice.Value, s.TotalCost)
	if tree.Variant == VariantStock {
		s.MarginToComplete, s.ROIToComplete = marginROI(tree.SellPrice.Value, s.CostToComplete)
	}
	return s
}

func marginROI(sell, cost decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	margin := sell.Sub(cost)
	if !cost.IsPositive() {
		return margin, decimal.Zero
	}
	return margin, margin.Div(cost).Mul(hundred)
}

// visibleFreshness is the worst freshness among nodes priced at market
// under the current expansion choices.
func visibleFreshness(nodes []*IngredientNode, now time.Time, policy FreshnessPolicy) Freshness {
	worst := FreshnessUnknown
	seen := false
	var visit func([]*IngredientNode)
	visit = func(level []*IngredientNode) {
		for _, n := range level {
			if n.IsExpanded() {
				visit(n.Children)
				continue
			}
			f := policy.Classify(n.PriceUpdatedAt, now)
			if !seen {
				worst, seen = f, true
				continue
			}
			worst = Worse(worst, f)
		}
	}
	visit(nodes)
	return worst
}
