package crafting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	craftingDI "github.com/fd1az/craftcalc/business/crafting/di"
	"github.com/fd1az/craftcalc/internal/config"
	"github.com/fd1az/craftcalc/internal/health"
	"github.com/fd1az/craftcalc/internal/logger"
	"github.com/fd1az/craftcalc/internal/monolith"
)

func TestModule_Wiring(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Stock.Driver = "sqlite"
	cfg.Stock.DSN = filepath.Join(t.TempDir(), "stock.db")

	log := logger.NewNop()
	hs := health.NewServer(0, "test", log)
	mono, err := monolith.New(ctx, cfg, log, hs)
	if err != nil {
		t.Fatal(err)
	}
	defer mono.Close()

	m := &Module{}
	if err := mono.RegisterModules(m); err != nil {
		t.Fatal(err)
	}
	if err := mono.StartModules(ctx, m); err != nil {
		t.Fatal(err)
	}

	sr := mono.Services()
	if craftingDI.GetCraftingService(sr) == nil || craftingDI.GetController(sr) == nil {
		t.Fatal("core services not resolved")
	}
	if craftingDI.GetStockStore(sr) == nil {
		t.Error("sqlite stock store not opened")
	}
	if craftingDI.GetPriceFeed(sr) != nil {
		t.Error("price feed must be nil when prices are disabled")
	}

	w := httptest.NewRecorder()
	hs.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health = %d: %s", w.Code, w.Body.String())
	}
	for _, check := range []string{"recipe_api", "stock_db"} {
		if !strings.Contains(w.Body.String(), check) {
			t.Errorf("health body missing %s: %s", check, w.Body.String())
		}
	}
}

func TestModule_NoStockDriver(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}

	log := logger.NewNop()
	mono, err := monolith.New(ctx, cfg, log, health.NewServer(0, "test", log))
	if err != nil {
		t.Fatal(err)
	}
	defer mono.Close()

	m := &Module{}
	mono.RegisterModules(m)
	if err := mono.StartModules(ctx, m); err != nil {
		t.Fatal(err)
	}

	sr := mono.Services()
	if craftingDI.GetStockStore(sr) != nil {
		t.Error("no stock store expected")
	}
	if craftingDI.GetCraftingService(sr) == nil {
		t.Error("service not resolved")
	}
}
