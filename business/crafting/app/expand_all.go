package app

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/apperror"
)

// ExpandFailure records a subtree that ExpandAll left unexpanded.
type ExpandFailure struct {
	Path         domain.Path
	SubRecipeRef string
	Err          error
}

// ExpandReport summarises one ExpandAll run.
type ExpandReport struct {
	Levels   int
	Fetched  int
	Reused   int
	Expanded int
	Failures []ExpandFailure
	Canceled bool
}

// OK reports a run without failures or cancellation.
func (r *ExpandReport) OK() bool {
	return len(r.Failures) == 0 && !r.Canceled
}

// TreeUpdate applies fn to the latest tree value and returns the result.
// fn never blocks.
type TreeUpdate func(fn func(*domain.RecipeTree) *domain.RecipeTree) *domain.RecipeTree

// ExpandAll expands every reachable expandable node, one depth level at a
// time. Unloaded nodes of a level are fetched concurrently and identical
// sub-recipes are fetched once per run. A failed fetch leaves its node
// Unloaded and the walk continues elsewhere. observe, if set, receives the
// tree each time a level starts loading and after it is applied.
func (c *Controller) ExpandAll(ctx context.Context, tree *domain.RecipeTree, observe func(*domain.RecipeTree)) (*domain.RecipeTree, *ExpandReport) {
	if tree == nil {
		return nil, &ExpandReport{}
	}

	current := tree
	report := c.ExpandAllShared(ctx, func(fn func(*domain.RecipeTree) *domain.RecipeTree) *domain.RecipeTree {
		next := fn(current)
		if next != current {
			current = next
			if observe != nil {
				observe(current)
			}
		}
		return current
	})
	return current, report
}

// ExpandAllShared is ExpandAll for a tree that other writers may change
// while fetches are in flight. Every read and write goes through update, so
// toggles and repricing that land between levels are kept. Nodes another
// writer is loading are skipped.
func (c *Controller) ExpandAllShared(ctx context.Context, update TreeUpdate) *ExpandReport {
	report := &ExpandReport{}

	var frontier []domain.Path
	start := update(func(t *domain.RecipeTree) *domain.RecipeTree {
		if t != nil {
			for _, n := range t.Roots {
				frontier = append(frontier, domain.Path{n.ItemID})
			}
		}
		return t
	})
	if start == nil {
		return report
	}

	ctx, span := c.tracer.Start(ctx, "crafting.expand_all",
		trace.WithAttributes(attribute.String("recipe", start.RecipeID)),
	)
	defer span.End()

	memo := make(map[string]LoadResult)

	for depth := 0; len(frontier) > 0; depth++ {
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}

		var (
			next     []domain.Path
			requests []LoadRequest
		)
		update(func(t *domain.RecipeTree) *domain.RecipeTree {
			var planned *domain.RecipeTree
			planned, next, requests = c.planLevel(t, frontier, depth, report)
			return planned
		})

		report.Levels = depth + 1

		if len(requests) > 0 {
			c.fetchLevel(ctx, requests, memo, report)

			update(func(t *domain.RecipeTree) *domain.RecipeTree {
				for _, req := range requests {
					res := memo[req.SubRecipeRef]
					res.Path = req.Path

					applied, err := c.Apply(t, res)
					if err != nil {
						t = applied
						if res.Canceled() {
							report.Canceled = true
							continue
						}
						report.Failures = append(report.Failures, ExpandFailure{
							Path:         req.Path,
							SubRecipeRef: req.SubRecipeRef,
							Err:          err,
						})
						continue
					}
					if applied == t {
						continue
					}
					t = applied
					report.Expanded++
					next = appendChildPaths(next, req.Path, res.Children)
				}
				return t
			})
		}

		frontier = next
	}

	c.metrics.expandLevel.Record(ctx, int64(report.Levels))
	span.SetAttributes(
		attribute.Int("levels", report.Levels),
		attribute.Int("fetched", report.Fetched),
		attribute.Int("failures", len(report.Failures)),
	)
	if report.OK() {
		span.SetStatus(codes.Ok, "expanded")
	} else {
		span.SetStatus(codes.Error, "partial")
	}
	c.logger.Info(ctx, "expand all finished",
		"recipe", start.RecipeID,
		"levels", report.Levels,
		"fetched", report.Fetched,
		"reused", report.Reused,
		"failures", len(report.Failures),
		"canceled", report.Canceled,
	)

	return report
}

// planLevel flips loaded frontier nodes to Expanded, marks unloaded ones
// Loading and returns the fetches the level needs plus the paths of the
// children already known.
func (c *Controller) planLevel(tree *domain.RecipeTree, frontier []domain.Path, depth int, report *ExpandReport) (*domain.RecipeTree, []domain.Path, []LoadRequest) {
	var (
		next     []domain.Path
		requests []LoadRequest
	)
	for _, p := range frontier {
		node, ok := domain.NodeAt(tree, p)
		if !ok || !node.IsExpandable() || node.State == domain.Loading {
			continue
		}

		if refOnPath(tree, p, node.SubRecipeRef) {
			report.Failures = append(report.Failures, ExpandFailure{
				Path:         p,
				SubRecipeRef: node.SubRecipeRef,
				Err:          apperror.New(apperror.CodeRecipeCycle, apperror.WithContext(p.String())),
			})
			continue
		}

		if node.IsLoaded() {
			if node.State != domain.Expanded {
				tree = domain.UpdateAtPath(tree, p, func(n *domain.IngredientNode) *domain.IngredientNode {
					return n.WithState(domain.Expanded)
				})
				report.Expanded++
			}
			next = appendChildPaths(next, p, node.Children)
			continue
		}

		if c.config.MaxDepth > 0 && depth >= c.config.MaxDepth {
			report.Failures = append(report.Failures, ExpandFailure{
				Path:         p,
				SubRecipeRef: node.SubRecipeRef,
				Err: apperror.New(apperror.CodeDepthLimit,
					apperror.WithContext("depth "+strconv.Itoa(depth))),
			})
			continue
		}

		tree = domain.UpdateAtPath(tree, p, func(n *domain.IngredientNode) *domain.IngredientNode {
			return n.WithState(domain.Loading)
		})
		requests = append(requests, LoadRequest{
			Path:         p,
			SubRecipeRef: node.SubRecipeRef,
			Server:       tree.Server,
			Variant:      tree.Variant,
			ProfileID:    tree.ProfileID,
		})
	}
	return tree, next, requests
}

// fetchLevel loads every sub-recipe of one level not already in memo.
func (c *Controller) fetchLevel(ctx context.Context, requests []LoadRequest, memo map[string]LoadResult, report *ExpandReport) {
	var pending []LoadRequest
	queued := make(map[string]struct{})
	for _, req := range requests {
		if _, ok := memo[req.SubRecipeRef]; ok {
			report.Reused++
			continue
		}
		if _, ok := queued[req.SubRecipeRef]; ok {
			report.Reused++
			continue
		}
		queued[req.SubRecipeRef] = struct{}{}
		pending = append(pending, req)
	}

	results := make([]LoadResult, len(pending))

	var g errgroup.Group
	g.SetLimit(c.config.ExpandConcurrency)
	for i, req := range pending {
		g.Go(func() error {
			results[i] = c.Load(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if !res.Canceled() {
			report.Fetched++
		}
		memo[res.SubRecipeRef] = res
	}
}

func appendChildPaths(dst []domain.Path, parent domain.Path, children []*domain.IngredientNode) []domain.Path {
	for _, ch := range children {
		dst = append(dst, parent.Child(ch.ItemID))
	}
	return dst
}

// refOnPath reports whether ref already appears on an ancestor of path.
func refOnPath(tree *domain.RecipeTree, path domain.Path, ref string) bool {
	for i := 1; i < len(path); i++ {
		anc, ok := domain.NodeAt(tree, path[:i])
		if ok && anc.SubRecipeRef == ref {
			return true
		}
	}
	return false
}
