package domain

import "github.com/shopspring/decimal"

// Row is one visible line of a tree table.
type Row struct {
	Path  Path
	Depth int
	Node  *IngredientNode

	Cost       decimal.Decimal
	IsComplete bool
	// Share is the node's percentage of its sibling level's total.
	Share decimal.Decimal

	// Stock is set for stock-aware trees only.
	Stock *StockLine
}

// Rows flattens the visible part of the tree: roots plus the children of
// expanded nodes.
func Rows(tree *RecipeTree) []Row {
	if tree == nil {
		return nil
	}
	var rows []Row
	appendRows(&rows, tree.Roots, nil, 0, tree.Variant)
	return rows
}

func appendRows(rows *[]Row, nodes []*IngredientNode, prefix Path, depth int, variant Variant) {
	level := Aggregate(nodes)
	for _, n := range nodes {
		cost, complete := NodeCost(n)
		r := Row{
			Path:       prefix.Child(n.ItemID),
			Depth:      depth,
			Node:       n,
			Cost:       cost,
			IsComplete: complete,
			Share:      Share(cost, level.TotalCost),
		}
		if variant == VariantStock {
			line := NodeStock(n)
			r.Stock = &line
		}
		*rows = append(*rows, r)

		if n.State == Expanded {
			appendRows(rows, n.Children, r.Path, depth+1, variant)
		}
	}
}
