package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemRef identifies a market item.
type ItemRef struct {
	ID      int
	Name    string
	IconRef string
}

// IngredientRecord is one ingredient line as supplied by the recipe source.
type IngredientRecord struct {
	ItemID         int
	Name           string
	IconRef        string
	Quantity       int
	UnitPrice      Price
	PriceUpdatedAt time.Time
	SubRecipeRef   string
}

// Recipe is a fully resolved recipe record for one server.
type Recipe struct {
	ID                   string
	Server               string
	Result               ItemRef
	SellPrice            Price
	SellPriceUpdatedAt   time.Time
	Ingredients          []IngredientRecord
	TotalIngredientCount int
	KnownPriceCount      int
	CascadeEstimate      Price
}

// NodesFromRecipe builds unloaded nodes for every ingredient line.
// Quantities below one are raised to one.
func NodesFromRecipe(r *Recipe) []*IngredientNode {
	if r == nil {
		return nil
	}
	nodes := make([]*IngredientNode, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		qty := ing.Quantity
		if qty < 1 {
			qty = 1
		}
		nodes = append(nodes, &IngredientNode{
			ItemID:           ing.ItemID,
			Name:             ing.Name,
			IconRef:          ing.IconRef,
			RequiredQuantity: qty,
			UnitPrice:        ing.UnitPrice,
			PriceUpdatedAt:   ing.PriceUpdatedAt,
			SubRecipeRef:     ing.SubRecipeRef,
			State:            Unloaded,
		})
	}
	return nodes
}

// NewTree opens a plain tree with nothing expanded.
func NewTree(r *Recipe) *RecipeTree {
	return &RecipeTree{
		RecipeID:             r.ID,
		Server:               r.Server,
		ResultItemID:         r.Result.ID,
		ResultName:           r.Result.Name,
		SellPrice:            r.SellPrice,
		SellPriceUpdatedAt:   r.SellPriceUpdatedAt,
		Variant:              VariantPlain,
		QuickEstimate:        r.CascadeEstimate,
		TotalIngredientCount: r.TotalIngredientCount,
		KnownPriceCount:      r.KnownPriceCount,
		Roots:                NodesFromRecipe(r),
	}
}

// NewStockTree opens a stock-aware tree with owned quantities merged in.
func NewStockTree(r *Recipe, profileID string, owned map[int]int) *RecipeTree {
	t := NewTree(r)
	t.Variant = VariantStock
	t.ProfileID = profileID
	t.Roots = MergeOwned(t.Roots, owned)
	return t
}

// ItemIDs lists the distinct item ids of nodes, in order.
func ItemIDs(nodes []*IngredientNode) []int {
	seen := make(map[int]struct{}, len(nodes))
	ids := make([]int, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n.ItemID]; ok {
			continue
		}
		seen[n.ItemID] = struct{}{}
		ids = append(ids, n.ItemID)
	}
	return ids
}

// MergeOwned copies owned quantities onto nodes. Missing entries mean zero.
// Only the given level is touched.
func MergeOwned(nodes []*IngredientNode, owned map[int]int) []*IngredientNode {
	out := make([]*IngredientNode, len(nodes))
	for i, n := range nodes {
		qty := owned[n.ItemID]
		if qty < 0 {
			qty = 0
		}
		out[i] = n.WithOwned(qty)
	}
	return out
}

// PriceTick is a live market price update for one item.
type PriceTick struct {
	ItemID int
	Server string
	Price  decimal.Decimal
	At     time.Time
}

// Reprice applies a tick to every node with the tick's item id, and to the
// sell price when the result item matches. Ticks for another server are
// ignored. Unchanged trees are returned as is.
func Reprice(tree *RecipeTree, tick PriceTick) *RecipeTree {
	if tree == nil {
		return nil
	}
	if tick.Server != "" && tree.Server != "" && tick.Server != tree.Server {
		return tree
	}
	if tick.Price.IsNegative() {
		return tree
	}

	price := KnownPrice(tick.Price)
	next := MapNodes(tree, func(n *IngredientNode) *IngredientNode {
		if n.ItemID != tick.ItemID {
			return n
		}
		if n.UnitPrice.Known && n.UnitPrice.Value.Equal(tick.Price) && n.PriceUpdatedAt.Equal(tick.At) {
			return n
		}
		return n.WithPrice(price, tick.At)
	})

	if tree.ResultItemID == tick.ItemID {
		if next == tree {
			next = tree.withRoots(tree.Roots)
		}
		next.SellPrice = price
		next.SellPriceUpdatedAt = tick.At
	}
	return next
}
