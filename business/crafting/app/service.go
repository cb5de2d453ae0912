package app

import (
	"context"
	"time"

	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/apperror"
	"github.com/fd1az/craftcalc/internal/logger"
)

// ServiceConfig holds workbench settings.
type ServiceConfig struct {
	Freshness   domain.FreshnessPolicy
	SessionIdle time.Duration
}

// CraftingService opens recipe trees and runs controller operations
// against the session that owns them.
type CraftingService struct {
	recipes  RecipeSource
	stock    StockSource
	ctrl     *Controller
	sessions *SessionStore
	config   ServiceConfig
	logger   logger.LoggerInterface
	now      func() time.Time
}

// NewCraftingService creates a CraftingService. stock may be nil.
func NewCraftingService(recipes RecipeSource, stock StockSource, ctrl *Controller, sessions *SessionStore, cfg ServiceConfig, log logger.LoggerInterface) *CraftingService {
	if cfg.Freshness == (domain.FreshnessPolicy{}) {
		cfg.Freshness = domain.DefaultFreshnessPolicy()
	}
	return &CraftingService{
		recipes:  recipes,
		stock:    stock,
		ctrl:     ctrl,
		sessions: sessions,
		config:   cfg,
		logger:   log,
		now:      time.Now,
	}
}

// Controller exposes the controller for single-owner callers such as the TUI.
func (s *CraftingService) Controller() *Controller {
	return s.ctrl
}

// OpenTree fetches a recipe and builds its tree. A non-empty profileID
// opens the stock-aware variant.
func (s *CraftingService) OpenTree(ctx context.Context, recipeID, server, profileID string) (*domain.RecipeTree, error) {
	recipe, err := s.recipes.FetchRecipe(ctx, recipeID, server)
	if err != nil {
		return nil, err
	}

	if profileID == "" {
		return domain.NewTree(recipe), nil
	}

	if s.stock == nil {
		return nil, apperror.New(apperror.CodeStockStoreUnavailable,
			apperror.WithContext("no stock store configured"))
	}

	roots := domain.NodesFromRecipe(recipe)
	owned, err := s.stock.FetchOwnedQuantities(ctx, profileID, domain.ItemIDs(roots))
	if err != nil {
		return nil, apperror.New(apperror.CodeStockFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext("profile "+profileID))
	}
	return domain.NewStockTree(recipe, profileID, owned), nil
}

// OpenSession opens a tree and registers it as a session.
func (s *CraftingService) OpenSession(ctx context.Context, recipeID, server, profileID string) (*Session, error) {
	tree, err := s.OpenTree(ctx, recipeID, server, profileID)
	if err != nil {
		return nil, err
	}
	sess := s.sessions.Create(tree)
	s.logger.Info(ctx, "session opened",
		"session", sess.ID, "recipe", recipeID, "server", server, "variant", tree.Variant.String())
	return sess, nil
}

// Session looks up an open session.
func (s *CraftingService) Session(id string) (*Session, error) {
	return s.sessions.Get(id)
}

// CloseSession discards a session.
func (s *CraftingService) CloseSession(id string) error {
	if !s.sessions.Close(id) {
		return apperror.NotFound(apperror.CodeSessionNotFound, id)
	}
	return nil
}

// Toggle toggles the node at path. The Loading state is published to the
// session before the fetch so concurrent readers can see it.
func (s *CraftingService) Toggle(ctx context.Context, sessionID string, path domain.Path) (*domain.RecipeTree, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	var req *LoadRequest
	tree, err := sess.Update(func(t *domain.RecipeTree) (*domain.RecipeTree, error) {
		next, r, err := s.ctrl.Toggle(t, path)
		req = r
		return next, err
	})
	if err != nil || req == nil {
		return tree, err
	}

	res := s.ctrl.Load(ctx, *req)
	return sess.Update(func(t *domain.RecipeTree) (*domain.RecipeTree, error) {
		return s.ctrl.Apply(t, res)
	})
}

// ExpandAll expands the whole session tree. Each level is marked Loading
// and later merged into the live snapshot, so toggles and price ticks that
// land while fetches run are kept.
func (s *CraftingService) ExpandAll(ctx context.Context, sessionID string) (*domain.RecipeTree, *ExpandReport, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, nil, err
	}
	report := s.ctrl.ExpandAllShared(ctx, func(fn func(*domain.RecipeTree) *domain.RecipeTree) *domain.RecipeTree {
		tree, _ := sess.Update(func(t *domain.RecipeTree) (*domain.RecipeTree, error) {
			return fn(t), nil
		})
		return tree
	})
	return sess.Snapshot(), report, nil
}

// CollapseAll collapses the session tree.
func (s *CraftingService) CollapseAll(sessionID string) (*domain.RecipeTree, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Update(func(t *domain.RecipeTree) (*domain.RecipeTree, error) {
		return CollapseAll(t), nil
	})
}

// Summarize computes the opportunity summary for a snapshot.
func (s *CraftingService) Summarize(tree *domain.RecipeTree) domain.Summary {
	return domain.Summarize(tree, s.now(), s.config.Freshness)
}

// ApplyTick reprices every open session and returns how many changed.
func (s *CraftingService) ApplyTick(tick domain.PriceTick) int {
	changed := 0
	for _, sess := range s.sessions.All() {
		before := sess.Snapshot()
		after, _ := sess.Update(func(t *domain.RecipeTree) (*domain.RecipeTree, error) {
			return domain.Reprice(t, tick), nil
		})
		if after != before {
			changed++
		}
	}
	return changed
}

// WatchPrices applies ticks from feed until ctx ends or the feed closes.
func (s *CraftingService) WatchPrices(ctx context.Context, feed PriceFeed) error {
	ticks, err := feed.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			if n := s.ApplyTick(tick); n > 0 {
				s.logger.Debug(ctx, "price tick applied", "item", tick.ItemID, "sessions", n)
			}
		}
	}
}

// EvictIdle closes sessions idle past the configured limit.
func (s *CraftingService) EvictIdle(ctx context.Context) int {
	if s.config.SessionIdle <= 0 {
		return 0
	}
	n := s.sessions.Evict(s.config.SessionIdle, s.now())
	if n > 0 {
		s.logger.Info(ctx, "idle sessions evicted", "count", n)
	}
	return n
}
