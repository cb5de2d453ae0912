// Package app contains the expansion controller, workbench services and port
// definitions for the crafting context.
package app

import (
	"context"

	"github.com/fd1az/craftcalc/business/crafting/domain"
)

// RecipeSource supplies recipe definitions with current market prices.
type RecipeSource interface {
	// FetchRecipe resolves one recipe for a game server. A recipe that does
	// not exist is reported with apperror.CodeSubRecipeNotFound.
	FetchRecipe(ctx context.Context, recipeID, server string) (*domain.Recipe, error)
}

// StockSource supplies bank-stock quantities for a profile.
type StockSource interface {
	// FetchOwnedQuantities returns owned quantities keyed by item id.
	// Items the profile does not hold may be absent from the map.
	FetchOwnedQuantities(ctx context.Context, profileID string, itemIDs []int) (map[int]int, error)
}

// PriceFeed streams live market prices.
type PriceFeed interface {
	Subscribe(ctx context.Context) (<-chan domain.PriceTick, error)
}

// Reporter renders a tree snapshot for a human.
type Reporter interface {
	Report(ctx context.Context, tree *domain.RecipeTree, summary domain.Summary, report *ExpandReport) error
}
