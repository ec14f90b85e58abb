package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Backends de anúncio e de lock suportados.
const (
	ListingBackendMarketplace = "marketplace"
	ListingBackendPostgres    = "postgres"

	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// Config armazena todas as configurações da vitrine.
type Config struct {
	// Geral
	Port        string
	Environment string
	LogLevel    string
	ServiceName string

	// API hospedada do marketplace
	MarketplaceBaseURL      string
	AssetsURL               string
	ClientID                string
	ClientSecret            string
	IntegrationClientID     string
	IntegrationClientSecret string
	MarketplaceTimeout      time.Duration

	// Onde os anúncios vivem
	ListingBackend string
	DatabaseURL    string
	DBTimeout      time.Duration

	// Cache e lock (Redis)
	LockBackend        string
	LockTTL            time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	CommissionCacheTTL time.Duration

	// Autenticação
	TokenLeeway time.Duration

	// Rate Limiting
	RateLimitMaxRequests int
	RateLimitPeriod      time.Duration

	// Reservas de estoque
	ReservationWorkers     int
	ReservationQueueSize   int
	ReservationMaxAttempts int
	ShutdownTimeout        time.Duration

	// Tracing
	JaegerEndpoint string
}

// LoadConfig carrega as configurações a partir das variáveis de ambiente.
func LoadConfig() *Config {
	cfg := &Config{
		// 1. Geral
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ServiceName: getEnv("SERVICE_NAME", "gostorefront"),

		// 2. Marketplace
		MarketplaceBaseURL:      getEnv("MARKETPLACE_BASE_URL", "https://flex-api.sharetribe.com"),
		AssetsURL:               getEnv("MARKETPLACE_ASSETS_URL", "https://cdn.st-api.com/v1/assets"),
		ClientID:                mustGetEnv("MARKETPLACE_CLIENT_ID"),
		ClientSecret:            mustGetEnv("MARKETPLACE_CLIENT_SECRET"),
		IntegrationClientID:     mustGetEnv("INTEGRATION_CLIENT_ID"),
		IntegrationClientSecret: mustGetEnv("INTEGRATION_CLIENT_SECRET"),
		MarketplaceTimeout:      getDurationEnv("MARKETPLACE_TIMEOUT_SEC", 10) * time.Second,

		// 3. Anúncios
		ListingBackend: getEnv("LISTING_BACKEND", ListingBackendMarketplace),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBTimeout:      getDurationEnv("DB_TIMEOUT_SEC", 5) * time.Second,

		// 4. Redis
		LockBackend:        getEnv("LOCK_BACKEND", LockBackendMemory),
		LockTTL:            getDurationEnv("LOCK_TTL_SEC", 45) * time.Second,
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getIntEnv("REDIS_DB", 0),
		CommissionCacheTTL: getDurationEnv("COMMISSION_CACHE_TTL_SEC", 300) * time.Second,

		// 5. Autenticação
		TokenLeeway: getDurationEnv("TOKEN_LEEWAY_SEC", 30) * time.Second,

		// 6. Rate Limiting
		RateLimitMaxRequests: getIntEnv("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitPeriod:      getDurationEnv("RATE_LIMIT_PERIOD_MIN", 1) * time.Minute,

		// 7. Reservas
		ReservationWorkers:     getIntEnv("RESERVATION_WORKERS", 4),
		ReservationQueueSize:   getIntEnv("RESERVATION_QUEUE_SIZE", 256),
		ReservationMaxAttempts: getIntEnv("RESERVATION_MAX_ATTEMPTS", 5),
		ShutdownTimeout:        getDurationEnv("SHUTDOWN_TIMEOUT_SEC", 15) * time.Second,

		// 8. Tracing
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("❌ Erro de Configuração")
	}
	return cfg
}

// Validate confere as combinações de configuração que dependem umas das outras.
func (c *Config) Validate() error {
	switch c.ListingBackend {
	case ListingBackendMarketplace:
	case ListingBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL deve ser definida quando LISTING_BACKEND=%s", ListingBackendPostgres)
		}
	default:
		return fmt.Errorf("LISTING_BACKEND inválido: %q", c.ListingBackend)
	}

	switch c.LockBackend {
	case LockBackendMemory:
	case LockBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR deve ser definida quando LOCK_BACKEND=%s", LockBackendRedis)
		}
		if section := c.LockedSectionTimeout(); c.LockTTL <= section {
			return fmt.Errorf("LOCK_TTL_SEC (%s) deve ser maior que o pior caso da seção com lock (%s)", c.LockTTL, section)
		}
	default:
		return fmt.Errorf("LOCK_BACKEND inválido: %q", c.LockBackend)
	}
	return nil
}

// LockedSectionTimeout é o pior caso de uma tentativa sob o lock do anúncio: troca do
// token de integração, leitura e gravação, cada uma limitada pelo timeout do backend.
func (c *Config) LockedSectionTimeout() time.Duration {
	call := c.MarketplaceTimeout
	if c.ListingBackend == ListingBackendPostgres && c.DBTimeout > call {
		call = c.DBTimeout
	}
	return 3 * call
}

// UsesRedis informa se algum componente precisa da conexão com o Redis.
func (c *Config) UsesRedis() bool {
	return c.RedisAddr != ""
}

// Funções Helpers (Auxiliares)

// getEnv lê a variável de ambiente ou retorna um valor padrão.
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// mustGetEnv lê a variável de ambiente, fatal se não estiver presente.
func mustGetEnv(key string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Fatal().Str("key", key).Msg("❌ Erro de Configuração: variável de ambiente obrigatória não definida.")
	return ""
}

// getDurationEnv lê uma variável de ambiente numérica e retorna-a como time.Duration.
func getDurationEnv(key string, defaultValue int) time.Duration {
	return time.Duration(getIntEnv(key, defaultValue))
}

// getIntEnv lê uma variável de ambiente numérica e retorna-a como int.
func getIntEnv(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Int("default", defaultValue).
			Msg("⚠️ Aviso: valor não é um número inteiro válido. Usando padrão.")
		return defaultValue
	}
	return value
}
