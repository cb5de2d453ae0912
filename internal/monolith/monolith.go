// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"errors"
	"sync"

	"github.com/fd1az/craftcalc/internal/cache"
	"github.com/fd1az/craftcalc/internal/config"
	"github.com/fd1az/craftcalc/internal/di"
	"github.com/fd1az/craftcalc/internal/health"
	"github.com/fd1az/craftcalc/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	Cache() cache.Store
	Health() *health.Server
	Services() di.ServiceRegistry
	// OnClose registers a shutdown hook, run in reverse order by Close.
	OnClose(fn func() error)
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

type app struct {
	config    *config.Config
	logger    logger.LoggerInterface
	cache     cache.Store
	health    *health.Server
	container di.Container

	mu      sync.Mutex
	closers []func() error
}

// New opens shared infrastructure and creates the container.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, hs *health.Server) (*app, error) {
	store, err := cache.Open(ctx, cache.Config{
		Backend: cfg.Cache.Backend,
		TTL:     cfg.Recipes.CacheTTL,
		Redis: cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Prefix:   cfg.App.Name + ":",
		},
	})
	if err != nil {
		return nil, err
	}

	container := di.NewContainer()
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("cache", store)
	container.Register("health", hs)

	a := &app{
		config:    cfg,
		logger:    log,
		cache:     store,
		health:    hs,
		container: container,
	}
	a.OnClose(store.Close)

	if rs, ok := store.(*cache.RedisStore); ok {
		hs.RegisterCheck("cache", func(ctx context.Context) (bool, string) {
			if err := rs.Ping(ctx); err != nil {
				return false, err.Error()
			}
			return true, ""
		})
	}
	return a, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) Cache() cache.Store {
	return a.cache
}

func (a *app) Health() *health.Server {
	return a.health
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

func (a *app) OnClose(fn func() error) {
	a.mu.Lock()
	a.closers = append(a.closers, fn)
	a.mu.Unlock()
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close runs the shutdown hooks, last registered first.
func (a *app) Close() error {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
