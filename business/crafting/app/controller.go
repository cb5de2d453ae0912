package app

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/apperror"
	"github.com/fd1az/craftcalc/internal/logger"
)

const (
	tracerName = "github.com/fd1az/craftcalc/business/crafting/app"
	meterName  = "github.com/fd1az/craftcalc/business/crafting/app"
)

// ControllerConfig bounds batch expansion.
type ControllerConfig struct {
	// ExpandConcurrency caps concurrent fetches within one depth level.
	ExpandConcurrency int
	// MaxDepth stops ExpandAll below this many levels. Zero means no limit.
	MaxDepth int
}

// DefaultControllerConfig returns the defaults used when config is silent.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{ExpandConcurrency: 8, MaxDepth: 12}
}

type controllerMetrics struct {
	fetches     metric.Int64Counter
	toggles     metric.Int64Counter
	expandLevel metric.Int64Histogram
}

// Controller drives load-on-demand expansion of recipe trees. It holds no
// tree state: every operation takes a tree and returns the next one.
type Controller struct {
	recipes RecipeSource
	stock   StockSource
	config  ControllerConfig
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *controllerMetrics
}

// NewController wires a controller. stock may be nil when no stock store
// is configured; stock-aware trees then load children with nothing owned.
func NewController(recipes RecipeSource, stock StockSource, cfg ControllerConfig, log logger.LoggerInterface) (*Controller, error) {
	if cfg.ExpandConcurrency <= 0 {
		cfg.ExpandConcurrency = DefaultControllerConfig().ExpandConcurrency
	}

	c := &Controller{
		recipes: recipes,
		stock:   stock,
		config:  cfg,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}
	if err := c.initMetrics(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &controllerMetrics{}

	c.metrics.fetches, err = meter.Int64Counter(
		"crafting_subrecipe_fetch_total",
		metric.WithDescription("Sub-recipe fetches by outcome"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	c.metrics.toggles, err = meter.Int64Counter(
		"crafting_toggle_total",
		metric.WithDescription("Toggle requests by resulting transition"),
		metric.WithUnit("{toggle}"),
	)
	if err != nil {
		return err
	}

	c.metrics.expandLevel, err = meter.Int64Histogram(
		"crafting_expand_all_levels",
		metric.WithDescription("Depth levels walked by one expand-all"),
		metric.WithUnit("{level}"),
	)
	return err
}

// LoadRequest describes a pending sub-recipe fetch for the node at Path.
type LoadRequest struct {
	Path         domain.Path
	SubRecipeRef string
	Server       string
	Variant      domain.Variant
	ProfileID    string
}

// LoadResult is the outcome of Load, to be handed to Apply.
type LoadResult struct {
	Path         domain.Path
	SubRecipeRef string
	Children     []*domain.IngredientNode
	Err          error
}

// Canceled reports whether the fetch was abandoned by its context.
func (r LoadResult) Canceled() bool {
	return apperror.GetCode(r.Err) == apperror.CodeLoadCanceled
}

// Toggle is the synchronous half of toggleExpand. Leaves and unresolvable
// paths are no-ops. Loaded nodes flip between collapsed and expanded.
// Unloaded nodes move to Loading and a LoadRequest is returned; the caller
// runs Load and hands the result to Apply.
func (c *Controller) Toggle(tree *domain.RecipeTree, path domain.Path) (*domain.RecipeTree, *LoadRequest, error) {
	node, ok := domain.NodeAt(tree, path)
	if !ok || !node.IsExpandable() {
		return tree, nil, nil
	}

	switch node.State {
	case domain.Loading:
		return tree, nil, apperror.New(apperror.CodeLoadInFlight, apperror.WithContext(path.String()))

	case domain.Expanded:
		c.countToggle("collapse")
		return domain.UpdateAtPath(tree, path, func(n *domain.IngredientNode) *domain.IngredientNode {
			return n.WithState(domain.Collapsed)
		}), nil, nil

	case domain.Collapsed:
		c.countToggle("expand")
		return domain.UpdateAtPath(tree, path, func(n *domain.IngredientNode) *domain.IngredientNode {
			return n.WithState(domain.Expanded)
		}), nil, nil
	}

	c.countToggle("load")
	next := domain.UpdateAtPath(tree, path, func(n *domain.IngredientNode) *domain.IngredientNode {
		return n.WithState(domain.Loading)
	})
	return next, &LoadRequest{
		Path:         path,
		SubRecipeRef: node.SubRecipeRef,
		Server:       tree.Server,
		Variant:      tree.Variant,
		ProfileID:    tree.ProfileID,
	}, nil
}

// Load fetches the sub-recipe for req and, for stock-aware trees, the owned
// quantities of its ingredients. It never touches a tree.
func (c *Controller) Load(ctx context.Context, req LoadRequest) LoadResult {
	ctx, span := c.tracer.Start(ctx, "crafting.load",
		trace.WithAttributes(
			attribute.String("sub_recipe", req.SubRecipeRef),
			attribute.String("server", req.Server),
			attribute.String("path", req.Path.String()),
		),
	)
	defer span.End()

	res := LoadResult{Path: req.Path, SubRecipeRef: req.SubRecipeRef}

	children, err := c.fetchChildren(ctx, req)
	if err != nil {
		res.Err = err
		outcome := string(apperror.GetCode(err))
		c.metrics.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		if !res.Canceled() {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			c.logger.Warn(ctx, "sub-recipe load failed",
				"sub_recipe", req.SubRecipeRef, "path", req.Path.String(), "error", err)
		}
		return res
	}

	res.Children = children
	c.metrics.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	span.SetAttributes(attribute.Int("children", len(children)))
	span.SetStatus(codes.Ok, "loaded")
	c.logger.Debug(ctx, "sub-recipe loaded", "sub_recipe", req.SubRecipeRef, "children", len(children))
	return res
}

func (c *Controller) fetchChildren(ctx context.Context, req LoadRequest) ([]*domain.IngredientNode, error) {
	recipe, err := c.recipes.FetchRecipe(ctx, req.SubRecipeRef, req.Server)
	if err != nil {
		return nil, classifyFetchError(ctx, err, req.SubRecipeRef)
	}
	if ctx.Err() != nil {
		return nil, canceled(ctx, req.SubRecipeRef)
	}

	children := domain.NodesFromRecipe(recipe)
	if req.Variant != domain.VariantStock || len(children) == 0 {
		return children, nil
	}

	var owned map[int]int
	if c.stock != nil {
		owned, err = c.stock.FetchOwnedQuantities(ctx, req.ProfileID, domain.ItemIDs(children))
		if err != nil {
			if ctx.Err() != nil {
				return nil, canceled(ctx, req.SubRecipeRef)
			}
			return nil, apperror.New(apperror.CodeStockFetchFailed,
				apperror.WithCause(err),
				apperror.WithContext("profile "+req.ProfileID))
		}
	}
	return domain.MergeOwned(children, owned), nil
}

func classifyFetchError(ctx context.Context, err error, ref string) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return canceled(ctx, ref)
	}
	switch apperror.GetCode(err) {
	case apperror.CodeSubRecipeNotFound, apperror.CodeRecipeFetchFailed:
		return err
	}
	return apperror.New(apperror.CodeRecipeFetchFailed,
		apperror.WithCause(err),
		apperror.WithContext("sub-recipe "+ref))
}

func canceled(ctx context.Context, ref string) error {
	return apperror.New(apperror.CodeLoadCanceled,
		apperror.WithCause(context.Cause(ctx)),
		apperror.WithContext("sub-recipe "+ref))
}

// Apply merges a LoadResult into tree. Results whose node is no longer
// Loading for the same sub-recipe are stale and ignored. A failed or
// canceled load puts the node back to Unloaded and returns the error.
func (c *Controller) Apply(tree *domain.RecipeTree, res LoadResult) (*domain.RecipeTree, error) {
	node, ok := domain.NodeAt(tree, res.Path)
	if !ok || node.State != domain.Loading || node.SubRecipeRef != res.SubRecipeRef {
		return tree, nil
	}

	if res.Err != nil {
		return domain.UpdateAtPath(tree, res.Path, func(n *domain.IngredientNode) *domain.IngredientNode {
			return n.WithState(domain.Unloaded)
		}), res.Err
	}

	return domain.UpdateAtPath(tree, res.Path, func(n *domain.IngredientNode) *domain.IngredientNode {
		return n.WithChildren(res.Children, domain.Expanded)
	}), nil
}

// ToggleExpand runs Toggle, Load and Apply in sequence. observe, if set,
// receives the Loading snapshot before the fetch starts.
func (c *Controller) ToggleExpand(ctx context.Context, tree *domain.RecipeTree, path domain.Path, observe func(*domain.RecipeTree)) (*domain.RecipeTree, error) {
	next, req, err := c.Toggle(tree, path)
	if err != nil || req == nil {
		return next, err
	}
	if observe != nil {
		observe(next)
	}
	return c.Apply(next, c.Load(ctx, *req))
}

// CollapseAll collapses every expanded node and keeps fetched children.
func CollapseAll(tree *domain.RecipeTree) *domain.RecipeTree {
	return domain.MapNodes(tree, func(n *domain.IngredientNode) *domain.IngredientNode {
		if n.State == domain.Expanded {
			return n.WithState(domain.Collapsed)
		}
		return n
	})
}

// CanExpandAll reports whether any expandable node is not expanded.
func CanExpandAll(tree *domain.RecipeTree) bool {
	found := false
	domain.Walk(tree, func(_ domain.Path, n *domain.IngredientNode) bool {
		if n.IsExpandable() && n.State != domain.Expanded {
			found = true
		}
		return !found
	})
	return found
}

// CanCollapseAll reports whether any node is expanded.
func CanCollapseAll(tree *domain.RecipeTree) bool {
	found := false
	domain.Walk(tree, func(_ domain.Path, n *domain.IngredientNode) bool {
		if n.State == domain.Expanded {
			found = true
		}
		return !found
	})
	return found
}

func (c *Controller) countToggle(transition string) {
	c.metrics.toggles.Add(context.Background(), 1, metric.WithAttributes(attribute.String("transition", transition)))
}
