package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/apperror"
	"github.com/fd1az/craftcalc/internal/logger"
)

func newTestService(t *testing.T, src *fakeRecipes, stock StockSource) *CraftingService {
	t.Helper()
	return NewCraftingService(src, stock, newTestController(t, src, stock), NewSessionStore(),
		ServiceConfig{SessionIdle: time.Minute}, logger.NewNop())
}

type chanFeed chan domain.PriceTick

func (f chanFeed) Subscribe(ctx context.Context) (<-chan domain.PriceTick, error) {
	return f, nil
}

func TestService_OpenTree(t *testing.T) {
	tests := []struct {
		name      string
		recipe    string
		profile   string
		stock     StockSource
		wantCode  apperror.Code
		wantStock bool
	}{
		{name: "plain", recipe: "sword"},
		{name: "stock", recipe: "sword", profile: "bank", stock: &fakeStock{owned: map[int]int{1: 2}}, wantStock: true},
		{name: "unknown_recipe", recipe: "axe", wantCode: apperror.CodeSubRecipeNotFound},
		{name: "no_stock_store", recipe: "sword", profile: "bank", wantCode: apperror.CodeStockStoreUnavailable},
		{name: "stock_failure", recipe: "sword", profile: "bank", stock: &fakeStock{err: errBoom}, wantCode: apperror.CodeStockFetchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, ironRecipes(), tt.stock)

			tree, err := svc.OpenTree(context.Background(), tt.recipe, "", tt.profile)
			if tt.wantCode != "" {
				if apperror.GetCode(err) != tt.wantCode {
					t.Fatalf("code = %s, want %s", apperror.GetCode(err), tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := tree.Variant == domain.VariantStock; got != tt.wantStock {
				t.Errorf("stock variant = %v, want %v", got, tt.wantStock)
			}
			if tt.wantStock && tree.Roots[0].OwnedQuantity != 2 {
				t.Errorf("owned = %d, want 2", tree.Roots[0].OwnedQuantity)
			}
		})
	}
}

func TestService_SessionLifecycle(t *testing.T) {
	src := ironRecipes()
	svc := newTestService(t, src, nil)
	ctx := context.Background()

	sess, err := svc.OpenSession(ctx, "sword", "", "")
	if err != nil {
		t.Fatal(err)
	}

	tree, err := svc.Toggle(ctx, sess.ID, domain.Path{1})
	if err != nil {
		t.Fatal(err)
	}
	if mustNode(t, tree, domain.Path{1}).State != domain.Expanded {
		t.Error("toggle should expand")
	}
	if sess.Snapshot() != tree {
		t.Error("session should hold the returned snapshot")
	}

	collapsed, err := svc.CollapseAll(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if CanCollapseAll(collapsed) {
		t.Error("collapse all left expanded nodes")
	}

	expanded, report, err := svc.ExpandAll(ctx, sess.ID)
	if err != nil || !report.OK() {
		t.Fatalf("expand all: %v %+v", err, report)
	}
	if report.Fetched != 0 {
		t.Errorf("fetched %d, children were already loaded", report.Fetched)
	}
	if sess.Snapshot() != expanded {
		t.Error("expand all result not published")
	}

	sum := svc.Summarize(expanded)
	if !sum.TotalCost.Equal(decimal.NewFromInt(100)) {
		t.Errorf("total cost = %s, want 100", sum.TotalCost)
	}

	if err := svc.CloseSession(sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Toggle(ctx, sess.ID, domain.Path{1}); apperror.GetCode(err) != apperror.CodeSessionNotFound {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeSessionNotFound)
	}
	if err := svc.CloseSession(sess.ID); apperror.GetCode(err) != apperror.CodeSessionNotFound {
		t.Error("closing twice should report not found")
	}
}

func TestService_ToggleFailureIsPublished(t *testing.T) {
	src := ironRecipes()
	src.fail["iron"] = errBoom
	svc := newTestService(t, src, nil)

	sess, err := svc.OpenSession(context.Background(), "sword", "", "")
	if err != nil {
		t.Fatal(err)
	}
	tree, err := svc.Toggle(context.Background(), sess.ID, domain.Path{1})
	if apperror.GetCode(err) != apperror.CodeRecipeFetchFailed {
		t.Fatalf("code = %s", apperror.GetCode(err))
	}
	if mustNode(t, tree, domain.Path{1}).State != domain.Unloaded {
		t.Error("node should be back to unloaded")
	}
	if sess.Snapshot() != tree {
		t.Error("reverted tree should be the session snapshot")
	}
}

func TestService_ApplyTickAndWatch(t *testing.T) {
	src := ironRecipes()
	svc := newTestService(t, src, nil)
	ctx := context.Background()

	a, _ := svc.OpenSession(ctx, "sword", "", "")
	b, _ := svc.OpenSession(ctx, "sword", "", "")

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := domain.PriceTick{ItemID: 2, Price: decimal.NewFromInt(12), At: at}
	if n := svc.ApplyTick(tick); n != 2 {
		t.Errorf("changed = %d, want 2", n)
	}
	if n := svc.ApplyTick(tick); n != 0 {
		t.Errorf("repeated tick changed %d sessions", n)
	}

	feed := make(chanFeed, 1)
	feed <- domain.PriceTick{ItemID: 9000, Price: decimal.NewFromInt(1500), At: at}
	close(feed)
	if err := svc.WatchPrices(ctx, feed); err != nil {
		t.Fatal(err)
	}

	for _, sess := range []*Session{a, b} {
		tree := sess.Snapshot()
		if got := mustNode(t, tree, domain.Path{2}).UnitPrice.Value; !got.Equal(decimal.NewFromInt(12)) {
			t.Errorf("wood price = %s, want 12", got)
		}
		if !tree.SellPrice.Value.Equal(decimal.NewFromInt(1500)) {
			t.Errorf("sell price = %s, want 1500", tree.SellPrice)
		}
	}
}

func TestService_EvictIdle(t *testing.T) {
	src := ironRecipes()
	svc := newTestService(t, src, nil)

	if _, err := svc.OpenSession(context.Background(), "sword", "", ""); err != nil {
		t.Fatal(err)
	}
	if n := svc.EvictIdle(context.Background()); n != 0 {
		t.Errorf("evicted %d fresh sessions", n)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if n := svc.EvictIdle(context.Background()); n != 1 {
		t.Errorf("evicted %d, want 1", n)
	}
	if svc.sessions.Len() != 0 {
		t.Error("store should be empty")
	}
}

func TestService_ExpandAllKeepsConcurrentWrites(t *testing.T) {
	src := newFakeRecipes()
	src.add("sword", ing(1, 3, "50", "iron"), ing(2, 1, "40", "steel"), ing(3, 2, "10", ""))
	src.add("iron", ing(10, 2, "15", ""))
	src.add("steel", ing(20, 4, "5", ""))

	svc := newTestService(t, src, nil)
	ctx := context.Background()
	sess, err := svc.OpenSession(ctx, "sword", "", "")
	if err != nil {
		t.Fatal(err)
	}

	entered := make(chan string, 4)
	src.entered = entered
	iron := src.hold("iron")
	steel := src.hold("steel")

	toggled := make(chan error, 1)
	go func() {
		_, err := svc.Toggle(ctx, sess.ID, domain.Path{1})
		toggled <- err
	}()
	if id := <-entered; id != "iron" {
		t.Fatalf("first fetch = %s, want iron", id)
	}

	expanded := make(chan *ExpandReport, 1)
	go func() {
		_, report, _ := svc.ExpandAll(ctx, sess.ID)
		expanded <- report
	}()
	if id := <-entered; id != "steel" {
		t.Fatalf("expand all fetched %s, want steel only", id)
	}

	close(iron)
	if err := <-toggled; err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got := mustNode(t, sess.Snapshot(), domain.Path{1}).State; got != domain.Expanded {
		t.Fatalf("node 1 = %v after toggle, want expanded", got)
	}

	svc.ApplyTick(domain.PriceTick{ItemID: 3, Price: decimal.NewFromInt(1), At: time.Now()})

	close(steel)
	report := <-expanded
	if report == nil || !report.OK() || report.Fetched != 1 {
		t.Fatalf("report = %+v", report)
	}

	tree := sess.Snapshot()
	for _, p := range []domain.Path{{1}, {2}} {
		if got := mustNode(t, tree, p).State; got != domain.Expanded {
			t.Errorf("node %s = %v, want expanded", p, got)
		}
	}
	if got := mustNode(t, tree, domain.Path{3}).UnitPrice.Value; !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("item 3 price = %s, want tick price 1", got)
	}

	// The node loaded by the toggle is not left in Loading.
	tree, err = svc.Toggle(ctx, sess.ID, domain.Path{1})
	if err != nil {
		t.Fatalf("re-toggle: %v", err)
	}
	if got := mustNode(t, tree, domain.Path{1}).State; got != domain.Collapsed {
		t.Errorf("node 1 = %v after re-toggle, want collapsed", got)
	}
}
