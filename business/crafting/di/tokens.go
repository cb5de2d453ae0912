// Package di contains dependency injection tokens for the crafting context.
package di

import (
	"github.com/fd1az/craftcalc/business/crafting/app"
	"github.com/fd1az/craftcalc/business/crafting/infra/httpapi"
	"github.com/fd1az/craftcalc/business/crafting/infra/pricefeed"
	"github.com/fd1az/craftcalc/business/crafting/infra/recipeapi"
	"github.com/fd1az/craftcalc/business/crafting/infra/stockdb"
	"github.com/fd1az/craftcalc/internal/di"
)

// Public service tokens - exposed to entry points
var (
	CraftingService = di.NewToken[*app.CraftingService]("crafting.CraftingService")
	Controller      = di.NewToken[*app.Controller]("crafting.Controller")
)

// Private dependency tokens - internal to crafting module
var (
	RecipeClient = di.NewToken[*recipeapi.Client]("crafting:recipeClient")
	StockStore   = di.NewToken[*stockdb.Guarded]("crafting:stockStore")
	SessionStore = di.NewToken[*app.SessionStore]("crafting:sessionStore")
	PriceFeed    = di.NewToken[*pricefeed.Feed]("crafting:priceFeed")
	APIServer    = di.NewToken[*httpapi.Server]("crafting:apiServer")
)

func GetCraftingService(c di.ServiceRegistry) *app.CraftingService {
	return di.GetToken(c, CraftingService)
}

func GetController(c di.ServiceRegistry) *app.Controller {
	return di.GetToken(c, Controller)
}

func GetRecipeClient(c di.ServiceRegistry) *recipeapi.Client {
	return di.GetToken(c, RecipeClient)
}

// GetStockStore returns nil when no stock driver is configured.
func GetStockStore(c di.ServiceRegistry) *stockdb.Guarded {
	return di.GetToken(c, StockStore)
}

func GetSessionStore(c di.ServiceRegistry) *app.SessionStore {
	return di.GetToken(c, SessionStore)
}

// GetPriceFeed returns nil when live prices are disabled.
func GetPriceFeed(c di.ServiceRegistry) *pricefeed.Feed {
	return di.GetToken(c, PriceFeed)
}

func GetAPIServer(c di.ServiceRegistry) *httpapi.Server {
	return di.GetToken(c, APIServer)
}
