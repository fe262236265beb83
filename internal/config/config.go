// Package config loads runtime configuration from defaults, an optional YAML
// file, and TRADEIN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the trade-in backend
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Trade    TradeConfig    `mapstructure:"trade"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	FrontendPath   string   `mapstructure:"frontend_path"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CatalogConfig selects where catalog lookups, inventory and payouts go.
// "local" uses the sqlite store, "remote" the store admin API.
type CatalogConfig struct {
	Mode              string  `mapstructure:"mode"`
	BaseURL           string  `mapstructure:"base_url"`
	APIToken          string  `mapstructure:"api_token"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	LocationID        string  `mapstructure:"location_id"`
	SeedFile          string  `mapstructure:"seed_file"`
}

type ResolverConfig struct {
	PreviewTimeout time.Duration `mapstructure:"preview_timeout"`
	CommitTimeout  time.Duration `mapstructure:"commit_timeout"`
	MinScore       float64       `mapstructure:"min_score"`
	MaxCandidates  int           `mapstructure:"max_candidates"`
}

type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TTL             time.Duration `mapstructure:"ttl"`
	Capacity        int           `mapstructure:"capacity"`
	TrueLRU         bool          `mapstructure:"true_lru"`
	Persist         bool          `mapstructure:"persist"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

type TradeConfig struct {
	PayoutCeiling    float64       `mapstructure:"payout_ceiling"`
	ValidateOverride bool          `mapstructure:"validate_override"`
	BatchTimeout     time.Duration `mapstructure:"batch_timeout"`
	Concurrency      int           `mapstructure:"concurrency"`
}

// Load reads configuration. A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/tcg-tradein/")

	v.SetEnvPrefix("TRADEIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("server.frontend_path", "")

	v.SetDefault("database.path", "./tradein.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("catalog.mode", "local")
	v.SetDefault("catalog.base_url", "")
	v.SetDefault("catalog.api_token", "")
	v.SetDefault("catalog.requests_per_second", 2.0)
	v.SetDefault("catalog.burst", 4)
	v.SetDefault("catalog.location_id", "default")
	v.SetDefault("catalog.seed_file", "")

	v.SetDefault("resolver.preview_timeout", "3s")
	v.SetDefault("resolver.commit_timeout", "15s")
	v.SetDefault("resolver.min_score", 0.3)
	v.SetDefault("resolver.max_candidates", 5)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.capacity", 1000)
	v.SetDefault("cache.true_lru", false)
	v.SetDefault("cache.persist", false)
	v.SetDefault("cache.janitor_interval", "1m")

	v.SetDefault("trade.payout_ceiling", 13500.0)
	v.SetDefault("trade.validate_override", true)
	v.SetDefault("trade.batch_timeout", "60s")
	v.SetDefault("trade.concurrency", 4)
}

func validate(cfg *Config) error {
	switch cfg.Catalog.Mode {
	case "local":
	case "remote":
		if cfg.Catalog.BaseURL == "" {
			return fmt.Errorf("catalog base URL is required in remote mode (set TRADEIN_CATALOG_BASE_URL)")
		}
	default:
		return fmt.Errorf("catalog mode must be 'local' or 'remote', got: %s", cfg.Catalog.Mode)
	}

	if cfg.Cache.Capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got: %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got: %s", cfg.Cache.TTL)
	}
	if cfg.Trade.PayoutCeiling <= 0 {
		return fmt.Errorf("payout ceiling must be positive, got: %v", cfg.Trade.PayoutCeiling)
	}
	if cfg.Trade.Concurrency <= 0 {
		return fmt.Errorf("trade concurrency must be positive, got: %d", cfg.Trade.Concurrency)
	}
	if cfg.Resolver.MinScore < 0 || cfg.Resolver.MinScore > 1 {
		return fmt.Errorf("resolver min score must be within [0,1], got: %v", cfg.Resolver.MinScore)
	}

	return nil
}
