package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Name != "craftcalc" || cfg.Cache.Backend != "memory" || cfg.Stock.Driver != "none" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Crafting.ExpandConcurrency != 8 || cfg.Crafting.MaxDepth != 12 {
		t.Errorf("crafting defaults = %+v", cfg.Crafting)
	}
	if cfg.Crafting.StaleAfter != 24*time.Hour || cfg.Recipes.CacheTTL != 10*time.Minute {
		t.Errorf("durations = %v, %v", cfg.Crafting.StaleAfter, cfg.Recipes.CacheTTL)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
recipes:
  base_url: https://recipes.example.com/v1
  server: draconiros
stock:
  driver: sqlite
  dsn: file:stock.db
crafting:
  max_depth: 4
  aging_after: 1h
  stale_after: 2h
`)
	t.Setenv("CRAFT_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recipes.Server != "draconiros" || cfg.Stock.Driver != "sqlite" || cfg.Crafting.MaxDepth != 4 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Crafting.AgingAfter != time.Hour {
		t.Errorf("aging_after = %v", cfg.Crafting.AgingAfter)
	}
	if cfg.App.LogLevel != "debug" {
		t.Errorf("log level = %q, env should win", cfg.App.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad_base_url", "recipes:\n  base_url: not-a-url\n", "recipes.base_url"},
		{"unknown_cache", "cache:\n  backend: memcached\n", "cache.backend"},
		{"stock_without_dsn", "stock:\n  driver: postgres\n", "stock.dsn"},
		{"unknown_stock", "stock:\n  driver: mongo\n", "stock.driver"},
		{"prices_without_url", "prices:\n  enabled: true\n", "prices.websocket_url"},
		{"zero_concurrency", "crafting:\n  expand_concurrency: 0\n", "expand_concurrency"},
		{"aging_after_stale", "crafting:\n  aging_after: 48h\n", "aging_after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
