package app

import (
	"os"
	"slices"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Catalog sources.
const (
	CatalogPostgres = "postgres"
	CatalogRemote   = "remote"
	CatalogMemory   = "memory"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CHECKOUT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Storage     string `default:"postgres" usage:"Basket storage backend: postgres or memory"`
	Catalog     CatalogConfig
	Cache       CacheConfig
	Pricing     PricingConfig
	Outbox      OutboxConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// CatalogConfig selects where products and promotions come from.
type CatalogConfig struct {
	Source  string        `default:"postgres" usage:"Product catalog source: postgres, remote or memory (embedded seed)"`
	URL     string        `usage:"Base URL of the remote product API" flag:"catalog-url"`
	Timeout time.Duration `default:"2s" usage:"Remote catalog request timeout"`
	Retries int           `default:"2" usage:"Remote catalog retries on transient failures"`
}

// CacheConfig enables the Redis read-through product cache.
type CacheConfig struct {
	RedisAddr string        `usage:"Redis address; empty disables the product cache" flag:"redis-addr"`
	TTL       time.Duration `default:"5m" usage:"Cached product lifetime"`
}

// PricingConfig tunes the catalog snapshot memo of the pricing engine.
type PricingConfig struct {
	MemoSize int           `default:"256" usage:"Max memoized catalog snapshots"`
	MemoTTL  time.Duration `default:"2s" usage:"Snapshot lifetime; 0 disables memoization"`
}

// OutboxConfig controls publishing of basket events to Kafka.
type OutboxConfig struct {
	Brokers   []string      `usage:"Kafka brokers; empty disables publishing"`
	Topic     string        `default:"checkout.basket-events" usage:"Kafka topic for basket events"`
	Interval  time.Duration `default:"1s" usage:"Outbox polling interval"`
	BatchSize int           `default:"100" usage:"Events published per poll"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if !slices.Contains([]string{StoragePostgres, StorageMemory}, c.Storage) {
		return errors.Errorf("unknown storage %q: want postgres or memory", c.Storage)
	}
	if !slices.Contains([]string{CatalogPostgres, CatalogRemote, CatalogMemory}, c.Catalog.Source) {
		return errors.Errorf("unknown catalog source %q: want postgres, remote or memory", c.Catalog.Source)
	}
	if c.needsDatabase() && c.DatabaseURL == "" {
		return errors.New("database URL is required: set CHECKOUT_DATABASE_URL or DATABASE_URL")
	}
	if c.Catalog.Source == CatalogRemote && c.Catalog.URL == "" {
		return errors.New("remote catalog requires CHECKOUT_CATALOG_URL")
	}
	if c.Pricing.MemoSize <= 0 {
		return errors.Errorf("pricing memo size must be positive, got %d", c.Pricing.MemoSize)
	}
	if c.RateLimit.Max <= 0 {
		return errors.Errorf("rate limit max must be positive, got %d", c.RateLimit.Max)
	}
	if c.RateLimit.Window <= 0 {
		return errors.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	}
	if len(c.Outbox.Brokers) > 0 && c.Outbox.Interval <= 0 {
		return errors.New("outbox interval must be positive")
	}
	return nil
}

func (c *Config) needsDatabase() bool {
	return c.Storage == StoragePostgres || c.Catalog.Source == CatalogPostgres
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
