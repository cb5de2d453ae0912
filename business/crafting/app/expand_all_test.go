package app

import (
	"context"
	"testing"

	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/apperror"
	"github.com/fd1az/craftcalc/internal/logger"
)

// three levels: gear -> plate (used twice) -> ingot -> ore
func gearRecipes() *fakeRecipes {
	src := newFakeRecipes()
	src.add("gear", ing(1, 2, "100", "plate"), ing(2, 1, "90", "plate"), ing(3, 4, "1", ""))
	src.add("plate", ing(10, 3, "20", "ingot"))
	src.add("ingot", ing(100, 2, "5", ""))
	return src
}

func TestExpandAll_ExpandsEveryLevel(t *testing.T) {
	src := gearRecipes()
	c := newTestController(t, src, nil)
	tree := treeFrom(t, src, "gear")

	var snapshots int
	got, report := c.ExpandAll(context.Background(), tree, func(*domain.RecipeTree) { snapshots++ })

	if !report.OK() {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
	if CanExpandAll(got) {
		t.Error("CanExpandAll must be false after a clean expand all")
	}
	for _, p := range []domain.Path{{1}, {2}, {1, 10}, {2, 10}} {
		if n := mustNode(t, got, p); n.State != domain.Expanded {
			t.Errorf("%s state = %v, want expanded", p, n.State)
		}
	}
	if n := mustNode(t, got, domain.Path{1, 10, 100}); n.State != domain.Unloaded {
		t.Errorf("leaf state = %v", n.State)
	}

	// identical sub-recipes are fetched once per run
	if src.callsFor("plate") != 1 || src.callsFor("ingot") != 1 {
		t.Errorf("fetches plate=%d ingot=%d, want 1 each", src.callsFor("plate"), src.callsFor("ingot"))
	}
	if report.Fetched != 2 || report.Reused != 2 {
		t.Errorf("fetched=%d reused=%d, want 2 and 2", report.Fetched, report.Reused)
	}
	if report.Levels != 3 {
		t.Errorf("levels = %d, want 3", report.Levels)
	}
	if snapshots == 0 {
		t.Error("observer never called")
	}

	// 2*(3*(2*5)) + 1*(3*(2*5)) + 4*1
	want := "94"
	if got := domain.Aggregate(got.Roots).TotalCost.String(); got != want {
		t.Errorf("aggregate = %s, want %s", got, want)
	}
}

func TestExpandAll_PartialFailureIsTolerated(t *testing.T) {
	src := newFakeRecipes()
	src.add("root", ing(1, 1, "10", "ok"), ing(2, 1, "10", "broken"), ing(3, 1, "10", "missing"))
	src.add("ok", ing(10, 1, "1", "deeper"))
	src.add("deeper", ing(100, 1, "1", ""))
	src.fail["broken"] = errBoom
	c := newTestController(t, src, nil)
	tree := treeFrom(t, src, "root")

	got, report := c.ExpandAll(context.Background(), tree, nil)

	if len(report.Failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(report.Failures))
	}
	codes := map[apperror.Code]bool{}
	for _, f := range report.Failures {
		codes[apperror.GetCode(f.Err)] = true
	}
	if !codes[apperror.CodeRecipeFetchFailed] || !codes[apperror.CodeSubRecipeNotFound] {
		t.Errorf("failure codes = %v", codes)
	}

	if mustNode(t, got, domain.Path{1, 10}).State != domain.Expanded {
		t.Error("healthy subtree should be fully expanded")
	}
	for _, p := range []domain.Path{{2}, {3}} {
		if n := mustNode(t, got, p); n.State != domain.Unloaded {
			t.Errorf("%s state = %v, want unloaded", p, n.State)
		}
	}
	if !CanExpandAll(got) {
		t.Error("failed subtrees remain expandable")
	}
}

func TestExpandAll_ExpandsCollapsedWithoutRefetch(t *testing.T) {
	src := gearRecipes()
	c := newTestController(t, src, nil)
	tree := treeFrom(t, src, "gear")

	expanded, _ := c.ExpandAll(context.Background(), tree, nil)
	collapsed := CollapseAll(expanded)

	again, report := c.ExpandAll(context.Background(), collapsed, nil)
	if report.Fetched != 0 {
		t.Errorf("fetched %d, want 0", report.Fetched)
	}
	if CanExpandAll(again) {
		t.Error("everything should be expanded again")
	}
	if src.callsFor("plate") != 1 {
		t.Errorf("plate fetched %d times", src.callsFor("plate"))
	}
}

func TestExpandAll_StopsOnCycle(t *testing.T) {
	src := newFakeRecipes()
	src.add("a", ing(1, 1, "1", "b"))
	src.add("b", ing(2, 1, "1", "a"))
	src.add("root", ing(5, 1, "1", "a"))
	c := newTestController(t, src, nil)
	tree := treeFrom(t, src, "root")

	got, report := c.ExpandAll(context.Background(), tree, nil)

	if len(report.Failures) != 1 || apperror.GetCode(report.Failures[0].Err) != apperror.CodeRecipeCycle {
		t.Fatalf("failures = %+v", report.Failures)
	}
	if p := report.Failures[0].Path; !p.Equal(domain.Path{5, 1, 2}) {
		t.Errorf("cycle reported at %s", p)
	}
	if mustNode(t, got, domain.Path{5, 1, 2}).State != domain.Unloaded {
		t.Error("cyclic node stays unloaded")
	}
}

func TestExpandAll_DepthLimit(t *testing.T) {
	src := gearRecipes()
	c, err := NewController(src, nil, ControllerConfig{ExpandConcurrency: 2, MaxDepth: 1}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	tree := treeFrom(t, src, "gear")

	got, report := c.ExpandAll(context.Background(), tree, nil)
	if len(report.Failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(report.Failures))
	}
	for _, f := range report.Failures {
		if apperror.GetCode(f.Err) != apperror.CodeDepthLimit {
			t.Errorf("code = %s", apperror.GetCode(f.Err))
		}
	}
	if src.callsFor("ingot") != 0 {
		t.Error("nothing below the limit should be fetched")
	}
	if mustNode(t, got, domain.Path{1}).State != domain.Expanded {
		t.Error("first level is within the limit")
	}
}

func TestExpandAll_CanceledContext(t *testing.T) {
	src := gearRecipes()
	c := newTestController(t, src, nil)
	tree := treeFrom(t, src, "gear")
	src.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	got, report := c.ExpandAll(ctx, tree, func(*domain.RecipeTree) { cancel() })

	if !report.Canceled {
		t.Error("report should be marked canceled")
	}
	domain.Walk(got, func(p domain.Path, n *domain.IngredientNode) bool {
		if n.State == domain.Loading {
			t.Errorf("%s left loading", p)
		}
		return true
	})
}
