// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Recipes   RecipesConfig   `mapstructure:"recipes"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Stock     StockConfig     `mapstructure:"stock"`
	Prices    PricesConfig    `mapstructure:"prices"`
	Crafting  CraftingConfig  `mapstructure:"crafting"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // set at runtime
}

// RecipesConfig points at the recipe data API.
type RecipesConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Server            string        `mapstructure:"server"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	FailureThreshold  int           `mapstructure:"failure_threshold"`
}

// CacheConfig selects the recipe cache backend.
type CacheConfig struct {
	Backend       string `mapstructure:"backend"` // memory | redis
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Compress      bool   `mapstructure:"compress"`
}

// StockConfig selects the bank stock store.
type StockConfig struct {
	Driver string `mapstructure:"driver"` // none | sqlite | postgres
	DSN    string `mapstructure:"dsn"`
}

// PricesConfig configures the live price feed.
type PricesConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	WebSocketURL   string        `mapstructure:"websocket_url"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// CraftingConfig bounds expansion and classifies price freshness.
type CraftingConfig struct {
	ExpandConcurrency int           `mapstructure:"expand_concurrency"`
	MaxDepth          int           `mapstructure:"max_depth"`
	AgingAfter        time.Duration `mapstructure:"aging_after"`
	StaleAfter        time.Duration `mapstructure:"stale_after"`
	SessionIdle       time.Duration `mapstructure:"session_idle"`
}

// HTTPConfig holds listener ports.
type HTTPConfig struct {
	APIPort     int      `mapstructure:"api_port"`
	HealthPort  int      `mapstructure:"health_port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"` // zipkin | stdout | otlp-grpc | otlp-http
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("CRAFT")
	v.AutomaticEnv()
	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "CRAFT_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "CRAFT_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "CRAFT_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("recipes.base_url", "CRAFT_RECIPES_URL")
	v.BindEnv("recipes.server", "CRAFT_SERVER")
	v.BindEnv("recipes.requests_per_minute", "CRAFT_RECIPES_RPM")

	v.BindEnv("cache.backend", "CRAFT_CACHE_BACKEND")
	v.BindEnv("cache.redis_addr", "CRAFT_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("cache.redis_password", "CRAFT_REDIS_PASSWORD", "REDIS_PASSWORD")

	v.BindEnv("stock.driver", "CRAFT_STOCK_DRIVER")
	v.BindEnv("stock.dsn", "CRAFT_STOCK_DSN", "DATABASE_URL")

	v.BindEnv("prices.enabled", "CRAFT_PRICES_ENABLED")
	v.BindEnv("prices.websocket_url", "CRAFT_PRICES_WS_URL")

	v.BindEnv("http.api_port", "CRAFT_API_PORT", "PORT")

	v.BindEnv("telemetry.enabled", "CRAFT_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "CRAFT_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "CRAFT_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "craftcalc")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("recipes.base_url", "http://localhost:8000/api")
	v.SetDefault("recipes.timeout", "10s")
	v.SetDefault("recipes.requests_per_minute", 300)
	v.SetDefault("recipes.cache_ttl", "10m")
	v.SetDefault("recipes.failure_threshold", 5)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")

	v.SetDefault("stock.driver", "none")

	v.SetDefault("prices.enabled", false)
	v.SetDefault("prices.initial_backoff", "1s")
	v.SetDefault("prices.max_backoff", "30s")

	v.SetDefault("crafting.expand_concurrency", 8)
	v.SetDefault("crafting.max_depth", 12)
	v.SetDefault("crafting.aging_after", "6h")
	v.SetDefault("crafting.stale_after", "24h")
	v.SetDefault("crafting.session_idle", "30m")

	v.SetDefault("http.api_port", 8080)
	v.SetDefault("http.health_port", 8081)
	v.SetDefault("http.cors_origins", []string{"*"})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "craftcalc")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if u, err := url.Parse(c.Recipes.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid recipes.base_url: %q", c.Recipes.BaseURL)
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid cache.backend: %q", c.Cache.Backend)
	}
	switch c.Stock.Driver {
	case "none":
	case "sqlite", "postgres":
		if c.Stock.DSN == "" {
			return fmt.Errorf("stock.dsn is required for driver %s", c.Stock.Driver)
		}
	default:
		return fmt.Errorf("invalid stock.driver: %q", c.Stock.Driver)
	}
	if c.Prices.Enabled && c.Prices.WebSocketURL == "" {
		return fmt.Errorf("prices.websocket_url is required when prices are enabled")
	}
	if c.Crafting.ExpandConcurrency < 1 {
		return fmt.Errorf("crafting.expand_concurrency must be at least 1")
	}
	if c.Crafting.MaxDepth < 0 {
		return fmt.Errorf("crafting.max_depth cannot be negative")
	}
	if c.Crafting.AgingAfter > c.Crafting.StaleAfter {
		return fmt.Errorf("crafting.aging_after must not exceed crafting.stale_after")
	}
	return nil
}
