package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/apperror"
	"github.com/fd1az/craftcalc/internal/logger"
)

// fakeRecipes serves recipes from a map and counts calls per id.
type fakeRecipes struct {
	mu      sync.Mutex
	recipes map[string]*domain.Recipe
	fail    map[string]error
	calls   map[string]int
	// block, when set, is waited on before answering.
	block chan struct{}
	// gates hold individual recipes until closed.
	gates map[string]chan struct{}
	// entered, when set, receives each recipe id as its fetch starts.
	entered chan string
}

func newFakeRecipes() *fakeRecipes {
	return &fakeRecipes{
		recipes: make(map[string]*domain.Recipe),
		fail:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (f *fakeRecipes) add(id string, ings ...domain.IngredientRecord) {
	f.recipes[id] = &domain.Recipe{
		ID:          id,
		Result:      domain.ItemRef{ID: 9000, Name: "result " + id},
		SellPrice:   domain.KnownPrice(decimal.NewFromInt(1000)),
		Ingredients: ings,
	}
}

func (f *fakeRecipes) FetchRecipe(ctx context.Context, recipeID, server string) (*domain.Recipe, error) {
	f.mu.Lock()
	f.calls[recipeID]++
	block := f.block
	gate := f.gates[recipeID]
	entered := f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- recipeID
	}
	for _, ch := range []chan struct{}{block, gate} {
		if ch == nil {
			continue
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := f.fail[recipeID]; ok {
		return nil, err
	}
	r, ok := f.recipes[recipeID]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeSubRecipeNotFound, recipeID)
	}
	return r, nil
}

// hold blocks fetches of id until the returned channel is closed.
func (f *fakeRecipes) hold(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gates == nil {
		f.gates = make(map[string]chan struct{})
	}
	ch := make(chan struct{})
	f.gates[id] = ch
	return ch
}

func (f *fakeRecipes) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type fakeStock struct {
	owned map[int]int
	err   error
	asked [][]int
}

func (f *fakeStock) FetchOwnedQuantities(ctx context.Context, profileID string, itemIDs []int) (map[int]int, error) {
	f.asked = append(f.asked, itemIDs)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[int]int)
	for _, id := range itemIDs {
		if q, ok := f.owned[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func ing(id, qty int, price string, ref string) domain.IngredientRecord {
	r := domain.IngredientRecord{ItemID: id, Name: "item", Quantity: qty, SubRecipeRef: ref}
	if price != "" {
		r.UnitPrice = domain.KnownPrice(decimal.RequireFromString(price))
	}
	return r
}

func newTestController(t *testing.T, recipes RecipeSource, stock StockSource) *Controller {
	t.Helper()
	c, err := NewController(recipes, stock, ControllerConfig{ExpandConcurrency: 4, MaxDepth: 8}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func treeFrom(t *testing.T, src *fakeRecipes, id string) *domain.RecipeTree {
	t.Helper()
	r, err := src.FetchRecipe(context.Background(), id, "")
	if err != nil {
		t.Fatalf("seed recipe %s: %v", id, err)
	}
	src.calls[id] = 0
	return domain.NewTree(r)
}

func mustNode(t *testing.T, tree *domain.RecipeTree, p domain.Path) *domain.IngredientNode {
	t.Helper()
	n, ok := domain.NodeAt(tree, p)
	if !ok {
		t.Fatalf("no node at %s", p)
	}
	return n
}

var errBoom = errors.New("connection reset")
