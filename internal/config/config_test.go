package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{URL: "postgres://localhost/seats"},
		JWT:      JWTConfig{Secret: "secret"},
		Redis:    RedisConfig{URL: "redis://localhost:6379/0"},
		Booking: BookingConfig{
			ModificationWindow: 7 * 24 * time.Hour,
			Strategy:           StrategyPessimistic,
			LockBackend:        LockBackendLocal,
			MaxCommitRetries:   5,
			LedgerDriver:       LedgerPostgres,
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEDGER_DRIVER", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/seats")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Booking.ModificationWindow)
	assert.Equal(t, StrategyPessimistic, cfg.Booking.Strategy)
	assert.Equal(t, LockBackendLocal, cfg.Booking.LockBackend)
	assert.Equal(t, 5, cfg.Booking.MaxCommitRetries)
	assert.Equal(t, LedgerPostgres, cfg.Booking.LedgerDriver)
	assert.Equal(t, "0 0 2 * * *", cfg.Booking.CompletionCron)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.True(t, cfg.Booking.InternationalPhones)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEDGER_DRIVER", "memory")
	t.Setenv("CATALOG_SEED_FILE", "catalog.json")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("BOOKING_CONCURRENCY_STRATEGY", "optimistic")
	t.Setenv("BOOKING_MODIFICATION_WINDOW_HOURS", "48")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("BOOKING_MAX_COMMIT_RETRIES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StrategyOptimistic, cfg.Booking.Strategy)
	assert.Equal(t, 48*time.Hour, cfg.Booking.ModificationWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 5, cfg.Booking.MaxCommitRetries, "invalid ints fall back to the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing database url", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"memory ledger needs no database", func(c *Config) {
			c.Database.URL = ""
			c.Booking.LedgerDriver = LedgerMemory
			c.Booking.CatalogSeedFile = "catalog.json"
		}, ""},
		{"memory ledger needs a catalog seed", func(c *Config) {
			c.Booking.LedgerDriver = LedgerMemory
		}, "CATALOG_SEED_FILE"},
		{"unknown ledger", func(c *Config) { c.Booking.LedgerDriver = "sqlite" }, "LEDGER_DRIVER"},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "JWT_SECRET"},
		{"unknown strategy", func(c *Config) { c.Booking.Strategy = "yolo" }, "BOOKING_CONCURRENCY_STRATEGY"},
		{"unknown lock backend", func(c *Config) { c.Booking.LockBackend = "etcd" }, "BOOKING_LOCK_BACKEND"},
		{"redis backend without url", func(c *Config) {
			c.Booking.LockBackend = LockBackendRedis
			c.Redis.URL = ""
		}, "REDIS_URL"},
		{"zero window", func(c *Config) { c.Booking.ModificationWindow = 0 }, "WINDOW"},
		{"zero retries", func(c *Config) { c.Booking.MaxCommitRetries = 0 }, "RETRIES"},
		{"rabbitmq without url", func(c *Config) {
			c.RabbitMQ.Enabled = true
			c.RabbitMQ.URL = ""
		}, "RABBITMQ_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := validConfig()
	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "BOOKING_LOCK_BACKEND=local")

	cfg.Booking.LockBackend = LockBackendRedis
	assert.Empty(t, cfg.Warnings())

	cfg.Booking.LockBackend = LockBackendLocal
	cfg.Booking.LedgerDriver = LedgerMemory
	assert.Empty(t, cfg.Warnings(), "the memory ledger is single process anyway")
}
