// Package crafting implements the crafting bounded context: recipe trees,
// their expansion and the cost and margin math over them.
package crafting

import (
	"context"
	"time"

	"github.com/fd1az/craftcalc/business/crafting/app"
	craftingDI "github.com/fd1az/craftcalc/business/crafting/di"
	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/business/crafting/infra/httpapi"
	"github.com/fd1az/craftcalc/business/crafting/infra/pricefeed"
	"github.com/fd1az/craftcalc/business/crafting/infra/recipeapi"
	"github.com/fd1az/craftcalc/business/crafting/infra/stockdb"
	"github.com/fd1az/craftcalc/internal/cache"
	"github.com/fd1az/craftcalc/internal/circuitbreaker"
	"github.com/fd1az/craftcalc/internal/config"
	"github.com/fd1az/craftcalc/internal/di"
	"github.com/fd1az/craftcalc/internal/logger"
	"github.com/fd1az/craftcalc/internal/monolith"
)

const (
	stockOpenTimeout  = 10 * time.Second
	priceRetryDelay   = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	stockBreakerTrips = 3
)

// Module implements the crafting bounded context.
type Module struct {
	// ServeAPI starts the HTTP API and background workers on Startup.
	ServeAPI bool
}

// RegisterServices registers all crafting services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Recipe API client - private dependency
	di.RegisterToken(c, craftingDI.RecipeClient, func(sr di.ServiceRegistry) *recipeapi.Client {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		store := sr.Get("cache").(cache.Store)

		client, err := recipeapi.NewClient(recipeapi.Config{
			BaseURL:           cfg.Recipes.BaseURL,
			Server:            cfg.Recipes.Server,
			Timeout:           cfg.Recipes.Timeout,
			RequestsPerMinute: cfg.Recipes.RequestsPerMinute,
			CacheTTL:          cfg.Recipes.CacheTTL,
			FailureThreshold:  cfg.Recipes.FailureThreshold,
			CompressCache:     cfg.Cache.Compress,
		}, store, log)
		if err != nil {
			panic("failed to create recipe client: " + err.Error())
		}
		return client
	})

	// Bank stock store - private, nil when stock.driver is none
	di.RegisterToken(c, craftingDI.StockStore, func(sr di.ServiceRegistry) *stockdb.Guarded {
		cfg := sr.Get("config").(*config.Config)

		ctx, cancel := context.WithTimeout(context.Background(), stockOpenTimeout)
		defer cancel()
		store, err := stockdb.Open(ctx, cfg.Stock.Driver, cfg.Stock.DSN)
		if err != nil {
			panic("failed to open stock store: " + err.Error())
		}
		if store == nil {
			return nil
		}
		return stockdb.NewGuarded(store, stockBreakerTrips, 30*time.Second)
	})

	di.RegisterToken(c, craftingDI.SessionStore, func(sr di.ServiceRegistry) *app.SessionStore {
		return app.NewSessionStore()
	})

	// Controller (public - the TUI drives it directly)
	di.RegisterToken(c, craftingDI.Controller, func(sr di.ServiceRegistry) *app.Controller {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		ctrl, err := app.NewController(
			craftingDI.GetRecipeClient(sr),
			stockSource(craftingDI.GetStockStore(sr)),
			app.ControllerConfig{
				ExpandConcurrency: cfg.Crafting.ExpandConcurrency,
				MaxDepth:          cfg.Crafting.MaxDepth,
			},
			log,
		)
		if err != nil {
			panic("failed to create controller: " + err.Error())
		}
		return ctrl
	})

	// CraftingService (public)
	di.RegisterToken(c, craftingDI.CraftingService, func(sr di.ServiceRegistry) *app.CraftingService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewCraftingService(
			craftingDI.GetRecipeClient(sr),
			stockSource(craftingDI.GetStockStore(sr)),
			craftingDI.GetController(sr),
			craftingDI.GetSessionStore(sr),
			app.ServiceConfig{
				Freshness: domain.FreshnessPolicy{
					AgingAfter: cfg.Crafting.AgingAfter,
					StaleAfter: cfg.Crafting.StaleAfter,
				},
				SessionIdle: cfg.Crafting.SessionIdle,
			},
			log,
		)
	})

	// Live price feed - private, nil when prices are disabled
	di.RegisterToken(c, craftingDI.PriceFeed, func(sr di.ServiceRegistry) *pricefeed.Feed {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		if !cfg.Prices.Enabled {
			return nil
		}

		feed, err := pricefeed.New(pricefeed.Config{
			URL:            cfg.Prices.WebSocketURL,
			Server:         cfg.Recipes.Server,
			MaxReconnects:  cfg.Prices.MaxReconnects,
			InitialBackoff: cfg.Prices.InitialBackoff,
			MaxBackoff:     cfg.Prices.MaxBackoff,
		}, log)
		if err != nil {
			panic("failed to create price feed: " + err.Error())
		}
		return feed
	})

	di.RegisterToken(c, craftingDI.APIServer, func(sr di.ServiceRegistry) *httpapi.Server {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var writer httpapi.StockWriter
		if store := craftingDI.GetStockStore(sr); store != nil {
			writer = store
		}
		return httpapi.NewServer(httpapi.Config{
			Port:        cfg.HTTP.APIPort,
			CORSOrigins: cfg.HTTP.CORSOrigins,
		}, craftingDI.GetCraftingService(sr), writer, log)
	})

	return nil
}

// Startup registers health checks and, when serving, starts the API,
// the price watcher and idle session eviction.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	recipes := craftingDI.GetRecipeClient(sr)
	mono.Health().RegisterCheck("recipe_api", func(context.Context) (bool, string) {
		if st := recipes.BreakerState(); st == circuitbreaker.StateOpen {
			return false, "circuit " + st.String()
		}
		return true, ""
	})

	if store := craftingDI.GetStockStore(sr); store != nil {
		mono.Health().RegisterCheck("stock_db", func(ctx context.Context) (bool, string) {
			if err := store.Ping(ctx); err != nil {
				return false, err.Error()
			}
			return true, ""
		})
		mono.OnClose(store.Close)
	}

	if !m.ServeAPI {
		log.Info(ctx, "crafting module started")
		return nil
	}

	svc := craftingDI.GetCraftingService(sr)

	if feed := craftingDI.GetPriceFeed(sr); feed != nil {
		mono.Health().RegisterCheck("price_feed", func(context.Context) (bool, string) {
			if !feed.Connected() {
				return false, "disconnected"
			}
			return true, ""
		})
		go watchPrices(ctx, svc, feed, log)
	}

	if idle := mono.Config().Crafting.SessionIdle; idle > 0 {
		go evictIdle(ctx, svc, idle)
	}

	api := craftingDI.GetAPIServer(sr)
	if err := api.Start(); err != nil {
		return err
	}
	mono.OnClose(func() error {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return api.Stop(stopCtx)
	})

	log.Info(ctx, "crafting module started", "api_port", mono.Config().HTTP.APIPort)
	return nil
}

// watchPrices keeps a price subscription alive until ctx ends, retrying
// failed connects.
func watchPrices(ctx context.Context, svc *app.CraftingService, feed app.PriceFeed, log logger.LoggerInterface) {
	for {
		if err := svc.WatchPrices(ctx, feed); err != nil {
			log.Warn(ctx, "price feed unavailable, will retry", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(priceRetryDelay):
		}
	}
}

func evictIdle(ctx context.Context, svc *app.CraftingService, idle time.Duration) {
	ticker := time.NewTicker(max(idle/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.EvictIdle(ctx)
		}
	}
}

func stockSource(g *stockdb.Guarded) app.StockSource {
	if g == nil {
		return nil
	}
	return g
}
