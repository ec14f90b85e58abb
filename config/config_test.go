package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MARKETPLACE_CLIENT_ID", "client-id")
	t.Setenv("MARKETPLACE_CLIENT_SECRET", "client-secret")
	t.Setenv("INTEGRATION_CLIENT_ID", "integ-id")
	t.Setenv("INTEGRATION_CLIENT_SECRET", "integ-secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ListingBackendMarketplace, cfg.ListingBackend)
	assert.Equal(t, LockBackendMemory, cfg.LockBackend)
	assert.Equal(t, 5*time.Second, cfg.DBTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CommissionCacheTTL)
	assert.Equal(t, 4, cfg.ReservationWorkers)
	assert.Equal(t, 5, cfg.ReservationMaxAttempts)
	assert.Equal(t, 45*time.Second, cfg.LockTTL)
	assert.Equal(t, 30*time.Second, cfg.LockedSectionTimeout())
	assert.False(t, cfg.UsesRedis())
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LISTING_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/storefront?sslmode=disable")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOCK_TTL_SEC", "90")
	t.Setenv("RESERVATION_WORKERS", "8")
	t.Setenv("RATE_LIMIT_PERIOD_MIN", "2")
	t.Setenv("RESERVATION_QUEUE_SIZE", "muitos")

	cfg := LoadConfig()

	assert.Equal(t, ListingBackendPostgres, cfg.ListingBackend)
	assert.Equal(t, LockBackendRedis, cfg.LockBackend)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, 90*time.Second, cfg.LockTTL)
	assert.Equal(t, 8, cfg.ReservationWorkers)
	assert.Equal(t, 2*time.Minute, cfg.RateLimitPeriod)
	assert.Equal(t, 256, cfg.ReservationQueueSize, "valor inválido usa o padrão")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"marketplace + memória", Config{ListingBackend: "marketplace", LockBackend: "memory"}, ""},
		{"postgres sem DATABASE_URL", Config{ListingBackend: "postgres", LockBackend: "memory"}, "DATABASE_URL"},
		{"redis sem endereço", Config{ListingBackend: "marketplace", LockBackend: "redis"}, "REDIS_ADDR"},
		{"redis com TTL seguro", Config{ListingBackend: "marketplace", LockBackend: "redis", RedisAddr: "r:6379",
			MarketplaceTimeout: 10 * time.Second, LockTTL: 45 * time.Second}, ""},
		{"TTL do lock menor que a seção", Config{ListingBackend: "marketplace", LockBackend: "redis", RedisAddr: "r:6379",
			MarketplaceTimeout: 10 * time.Second, LockTTL: 10 * time.Second}, "LOCK_TTL_SEC"},
		{"TTL do lock igual à seção", Config{ListingBackend: "marketplace", LockBackend: "redis", RedisAddr: "r:6379",
			MarketplaceTimeout: 10 * time.Second, LockTTL: 30 * time.Second}, "LOCK_TTL_SEC"},
		{"postgres com DB lento", Config{ListingBackend: "postgres", DatabaseURL: "postgres://x", LockBackend: "redis",
			RedisAddr: "r:6379", MarketplaceTimeout: 10 * time.Second, DBTimeout: 20 * time.Second, LockTTL: 45 * time.Second}, "LOCK_TTL_SEC"},
		{"backend desconhecido", Config{ListingBackend: "mongo", LockBackend: "memory"}, "LISTING_BACKEND"},
		{"lock desconhecido", Config{ListingBackend: "marketplace", LockBackend: "etcd"}, "LOCK_BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
