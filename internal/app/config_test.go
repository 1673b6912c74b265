package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoaderConfig(files ...string) aconfig.Config {
	return aconfig.Config{
		SkipFlags: true,
		EnvPrefix: "CHECKOUT",
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CHECKOUT_DATABASE_URL", "postgres://localhost/checkout")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, CatalogPostgres, cfg.Catalog.Source)
	assert.Equal(t, 256, cfg.Pricing.MemoSize)
	assert.Equal(t, 2*time.Second, cfg.Pricing.MemoTTL)
	assert.Equal(t, "checkout.basket-events", cfg.Outbox.Topic)
	assert.Empty(t, cfg.Outbox.Brokers)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage: memory
catalog:
  source: memory
`), 0o600))

	cfg, err := loadConfig(testLoaderConfig(path))
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, CatalogMemory, cfg.Catalog.Source)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL: "postgres://localhost/checkout",
			Storage:     StoragePostgres,
			Catalog:     CatalogConfig{Source: CatalogPostgres},
			Pricing:     PricingConfig{MemoSize: 16},
			RateLimit:   RateLimitConfig{Max: 100, Window: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown storage", func(c *Config) { c.Storage = "mongo" }, `unknown storage "mongo"`},
		{"unknown catalog", func(c *Config) { c.Catalog.Source = "csv" }, `unknown catalog source "csv"`},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "database URL is required"},
		{"memory only", func(c *Config) {
			c.DatabaseURL = ""
			c.Storage = StorageMemory
			c.Catalog.Source = CatalogMemory
		}, ""},
		{"remote without url", func(c *Config) { c.Catalog.Source = CatalogRemote }, "remote catalog requires"},
		{"zero memo size", func(c *Config) { c.Pricing.MemoSize = 0 }, "memo size must be positive"},
		{"zero rate limit", func(c *Config) { c.RateLimit.Max = 0 }, "rate limit max must be positive"},
		{"negative rate limit", func(c *Config) { c.RateLimit.Max = -1 }, "rate limit max must be positive"},
		{"zero rate window", func(c *Config) { c.RateLimit.Window = 0 }, "rate limit window must be positive"},
		{"outbox without interval", func(c *Config) { c.Outbox.Brokers = []string{"kafka:9092"} }, "outbox interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
