package ui

import (
	"github.com/fd1az/craftcalc/business/crafting/app"
	"github.com/fd1az/craftcalc/business/crafting/domain"
)

// WelcomeDoneMsg ends the welcome screen.
type WelcomeDoneMsg struct{}

// TreeOpenedMsg carries the result of opening the recipe.
type TreeOpenedMsg struct {
	Tree *domain.RecipeTree
	Err  error
}

// LoadedMsg carries a finished sub-recipe fetch started by a toggle.
type LoadedMsg struct {
	Result app.LoadResult
}

// ExpandProgressMsg is an intermediate tree while expand-all runs.
type ExpandProgressMsg struct {
	Tree *domain.RecipeTree
}

// ExpandDoneMsg is the final tree and report of an expand-all run.
type ExpandDoneMsg struct {
	Tree   *domain.RecipeTree
	Report *app.ExpandReport
}

// PriceTickMsg is a live price update.
type PriceTickMsg struct {
	Tick domain.PriceTick
}

// FeedStatusMsg reports an upstream connection change.
type FeedStatusMsg struct {
	Name      string
	Connected bool
	Detail    string
}

// ErrorMsg is shown in the error panel.
type ErrorMsg struct {
	Err error
}
