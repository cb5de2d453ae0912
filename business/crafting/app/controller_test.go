package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/apperror"
)

// root recipe: 3 x iron (50 each, craftable from ore) and 1 x wood (leaf)
func ironRecipes() *fakeRecipes {
	src := newFakeRecipes()
	src.add("sword", ing(1, 3, "50", "iron"), ing(2, 1, "10", ""))
	src.add("iron", ing(10, 2, "15", ""))
	return src
}

func TestToggle_LeafAndUnknownPathAreNoops(t *testing.T) {
	src := ironRecipes()
	c := newTestController(t, src, nil)
	tree := treeFrom(t, src, "sword")

	for _, p := range []domain.Path{{2}, {99}, {1, 10}, nil} {
		next, req, err := c.Toggle(tree, p)
		if next != tree || req != nil || err != nil {
			t.Errorf("Toggle(%v) = %p, %v, %v; want no-op", p, next, req, err)
		}
	}
}

func TestToggleExpand_LoadsThenFlips(t *testing.T) {
	src := ironRecipes()
	c := newTestController(t, src, nil)
	tree := treeFrom(t, src, "sword")
	ctx := context.Background()

	var observed *domain.RecipeTree
	expanded, err := c.ToggleExpand(ctx, tree, domain.Path{1}, func(t *domain.RecipeTree) { observed = t })
	if err != nil {
		t.Fatalf("ToggleExpand: %v", err)
	}
	if observed == nil || mustNode(t, observed, domain.Path{1}).State != domain.Loading {
		t.Fatal("observer should see the Loading snapshot")
	}

	iron := mustNode(t, expanded, domain.Path{1})
	if iron.State != domain.Expanded || len(iron.Children) != 1 {
		t.Fatalf("iron = %v with %d children", iron.State, len(iron.Children))
	}
	if ch := iron.Children[0]; ch.State != domain.Unloaded || ch.RequiredQuantity != 2 {
		t.Errorf("child state=%v qty=%d, want unloaded qty 2", ch.State, ch.RequiredQuantity)
	}
	if expanded.Roots[1] != tree.Roots[1] {
		t.Error("sibling identity must survive a load")
	}
	// 3 * (2 * 15) + 10
	if got := domain.Aggregate(expanded.Roots).TotalCost; !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("aggregate = %s, want 100", got)
	}

	collapsed, err := c.ToggleExpand(ctx, expanded, domain.Path{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if mustNode(t, collapsed, domain.Path{1}).State != domain.Collapsed {
		t.Error("second toggle should collapse")
	}

	again, err := c.ToggleExpand(ctx, collapsed, domain.Path{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if mustNode(t, again, domain.Path{1}).State != domain.Expanded {
		t.Error("third toggle should expand")
	}
	if n := src.callsFor("iron"); n != 1 {
		t.Errorf("iron fetched %d times, want 1", n)
	}
}

func TestToggle_RejectsLoadingNode(t *testing.T) {
	src := ironRecipes()
	c := newTestController(t, src, nil)
	tree := treeFrom(t, src, "sword")

	loading, req, err := c.Toggle(tree, domain.Path{1})
	if err != nil || req == nil {
		t.Fatalf("first toggle: req=%v err=%v", req, err)
	}

	again, req2, err := c.Toggle(loading, domain.Path{1})
	if apperror.GetCode(err) != apperror.CodeLoadInFlight {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeLoadInFlight)
	}
	if again != loading || req2 != nil {
		t.Error("rejected toggle must not change the tree")
	}
}

func TestToggleExpand_FailureRevertsToUnloaded(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*fakeRecipes)
		wantCode apperror.Code
	}{
		{
			name:     "sub_recipe_not_found",
			setup:    func(f *fakeRecipes) { delete(f.recipes, "iron") },
			wantCode: apperror.CodeSubRecipeNotFound,
		},
		{
			name:     "network_failure",
			setup:    func(f *fakeRecipes) { f.fail["iron"] = errBoom },
			wantCode: apperror.CodeRecipeFetchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := ironRecipes()
			tt.setup(src)
			c := newTestController(t, src, nil)
			tree := treeFrom(t, src, "sword")

			next, err := c.ToggleExpand(context.Background(), tree, domain.Path{1}, nil)
			if apperror.GetCode(err) != tt.wantCode {
				t.Fatalf("code = %s, want %s", apperror.GetCode(err), tt.wantCode)
			}
			n := mustNode(t, next, domain.Path{1})
			if n.State != domain.Unloaded || len(n.Children) != 0 {
				t.Errorf("node state=%v children=%d, want unloaded with none", n.State, len(n.Children))
			}

			// retry after the collaborator recovers
			src.add("iron", ing(10, 2, "15", ""))
			delete(src.fail, "iron")
			retried, err := c.ToggleExpand(context.Background(), next, domain.Path{1}, nil)
			if err != nil {
				t.Fatalf("retry: %v", err)
			}
			if mustNode(t, retried, domain.Path{1}).State != domain.Expanded {
				t.Error("retry should expand")
			}
		})
	}
}

func TestApply_StaleResultIsIgnored(t *testing.T) {
	src := ironRecipes()
	c := newTestController(t, src, nil)
	tree := treeFrom(t, src, "sword")

	loading, req, _ := c.Toggle(tree, domain.Path{1})
	res := c.Load(context.Background(), *req)

	// the view was reset to the original tree while the load was in flight
	got, err := c.Apply(tree, res)
	if got != tree || err != nil {
		t.Error("result for a node that is not loading must be ignored")
	}

	applied, err := c.Apply(loading, res)
	if err != nil || mustNode(t, applied, domain.Path{1}).State != domain.Expanded {
		t.Error("result for the loading node should apply")
	}
}

func TestToggleExpand_CanceledLoad(t *testing.T) {
	src := ironRecipes()
	c := newTestController(t, src, nil)
	tree := treeFrom(t, src, "sword")
	src.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	next, err := c.ToggleExpand(ctx, tree, domain.Path{1}, func(*domain.RecipeTree) { cancel() })

	if apperror.GetCode(err) != apperror.CodeLoadCanceled {
		t.Fatalf("code = %s, want %s", apperror.GetCode(err), apperror.CodeLoadCanceled)
	}
	if mustNode(t, next, domain.Path{1}).State != domain.Unloaded {
		t.Error("canceled load must not leave the node loading")
	}
}

func TestToggleExpand_StockTreeMergesOwnedChildren(t *testing.T) {
	src := ironRecipes()
	stock := &fakeStock{owned: map[int]int{10: 1}}
	c := newTestController(t, src, stock)

	r, _ := src.FetchRecipe(context.Background(), "sword", "")
	tree := domain.NewStockTree(r, "bank", map[int]int{1: 1})

	next, err := c.ToggleExpand(context.Background(), tree, domain.Path{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ore := mustNode(t, next, domain.Path{1, 10}); ore.OwnedQuantity != 1 {
		t.Errorf("owned ore = %d, want 1", ore.OwnedQuantity)
	}
	if len(stock.asked) != 1 || len(stock.asked[0]) != 1 || stock.asked[0][0] != 10 {
		t.Errorf("stock asked = %v", stock.asked)
	}

	// iron: req 3, owned 1 -> owned value 50; missing cascades (1 ore * 15) * 3
	st := domain.AggregateStock(next.Roots)
	if !st.TotalOwnedValue.Equal(decimal.NewFromInt(50)) {
		t.Errorf("owned value = %s, want 50", st.TotalOwnedValue)
	}
	if !st.TotalMissingCost.Equal(decimal.NewFromInt(55)) { // 45 + wood 10
		t.Errorf("missing cost = %s, want 55", st.TotalMissingCost)
	}
}

func TestToggleExpand_StockFailureReverts(t *testing.T) {
	src := ironRecipes()
	c := newTestController(t, src, &fakeStock{err: errBoom})

	r, _ := src.FetchRecipe(context.Background(), "sword", "")
	tree := domain.NewStockTree(r, "bank", nil)

	next, err := c.ToggleExpand(context.Background(), tree, domain.Path{1}, nil)
	if apperror.GetCode(err) != apperror.CodeStockFetchFailed {
		t.Fatalf("code = %s", apperror.GetCode(err))
	}
	if mustNode(t, next, domain.Path{1}).State != domain.Unloaded {
		t.Error("node should revert to unloaded")
	}
}

func TestCollapseAllAndPredicates(t *testing.T) {
	src := ironRecipes()
	c := newTestController(t, src, nil)
	tree := treeFrom(t, src, "sword")

	if !CanExpandAll(tree) || CanCollapseAll(tree) {
		t.Fatal("fresh tree: can expand, cannot collapse")
	}

	expanded, _ := c.ToggleExpand(context.Background(), tree, domain.Path{1}, nil)
	if !CanCollapseAll(expanded) {
		t.Error("expanded tree should be collapsible")
	}

	collapsed := CollapseAll(expanded)
	iron := mustNode(t, collapsed, domain.Path{1})
	if iron.State != domain.Collapsed || len(iron.Children) != 1 {
		t.Errorf("collapse must keep children, got %v with %d", iron.State, len(iron.Children))
	}
	if CanCollapseAll(collapsed) {
		t.Error("nothing left to collapse")
	}
	if CollapseAll(collapsed) != collapsed {
		t.Error("collapsing a collapsed tree should be a no-op")
	}
	if !domain.Aggregate(collapsed.Roots).TotalCost.Equal(domain.Aggregate(tree.Roots).TotalCost) {
		t.Error("collapsed aggregate should match the original")
	}
}
