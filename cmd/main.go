package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	// Nossos pacotes de infraestrutura e utilitários
	"gostorefront/config"
	"gostorefront/internal/pkg/cache"
	"gostorefront/internal/pkg/database"
	"gostorefront/internal/pkg/lock"
	"gostorefront/internal/pkg/logger"
	"gostorefront/internal/pkg/metrics"
	"gostorefront/internal/pkg/middleware"
	"gostorefront/internal/pkg/token"
	"gostorefront/internal/pkg/tracing"

	// Camadas da vitrine para Injeção de Dependências
	"gostorefront/internal/api/listing"
	"gostorefront/internal/api/order"
	"gostorefront/internal/api/router"
	"gostorefront/internal/marketplace"
	"gostorefront/internal/repository/listingrepo"
	"gostorefront/internal/reservation"
	"gostorefront/internal/service/listingservice"
	"gostorefront/internal/service/orderservice"
	"gostorefront/internal/service/reservationservice"
)

func main() {
	// 0. CARREGAR VARIÁVEIS DE AMBIENTE (.env)
	// Sem .env seguimos com o ambiente do sistema (ex: Docker).
	if err := godotenv.Load(); err != nil {
		zlog.Warn().Msg("⚠️ Aviso: Arquivo .env não encontrado. Carregando configs apenas do ambiente do sistema.")
	}

	// 1. Configuração e Inicialização
	cfg := config.LoadConfig()
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("⚡ Inicializando serviço GoStorefront...", map[string]interface{}{
		"env":             cfg.Environment,
		"listing_backend": cfg.ListingBackend,
		"lock_backend":    cfg.LockBackend,
	})

	shutdownTracer, err := tracing.InitTracerProvider(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Fatal("Falha ao iniciar o tracing.", err)
	}

	m := metrics.New()

	// 2. Conexão com Recursos de Infraestrutura

	// A. Cache (Redis), opcional
	var redisClient *cache.RedisClient
	if cfg.UsesRedis() {
		redisClient, err = cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal("Falha ao conectar ao Redis.", err)
		}
		defer redisClient.Close()
		log.Info("Conexão Redis estabelecida.", nil)
	}

	// B. API hospedada do marketplace
	mp := marketplace.New(marketplace.Config{
		BaseURL:                 cfg.MarketplaceBaseURL,
		AssetsURL:               cfg.AssetsURL,
		ClientID:                cfg.ClientID,
		ClientSecret:            cfg.ClientSecret,
		IntegrationClientID:     cfg.IntegrationClientID,
		IntegrationClientSecret: cfg.IntegrationClientSecret,
		Timeout:                 cfg.MarketplaceTimeout,
	}, m, log)

	// C. Onde os anúncios vivem
	var listings listingservice.ListingRepository = mp
	if cfg.ListingBackend == config.ListingBackendPostgres {
		db, err := database.NewPostgresDB(cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal("Falha ao conectar ao banco de dados.", err)
		}
		defer db.Close()
		listings = listingrepo.NewListingRepository(db, cfg.DBTimeout, log)
		log.Info("Conexão PostgreSQL estabelecida.", nil)
	}

	// D. Lock por anúncio, compartilhado por reservas e edição de variantes
	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.LockBackend == config.LockBackendRedis {
		locker = lock.NewRedisLocker(redisClient, lock.RedisOptions{TTL: cfg.LockTTL}, log)
	}

	// E. Comissões, com cache quando houver Redis
	var commissions orderservice.CommissionFetcher = mp
	if redisClient != nil {
		commissions = marketplace.NewCachedCommission(mp, redisClient, cfg.CommissionCacheTTL, log)
	}

	// 3. INJEÇÃO DE DEPENDÊNCIAS
	// Ordem: Repository -> Service -> Handler

	reservationSvc := reservationservice.NewService(listings, locker, cfg.ReservationMaxAttempts, log)
	dispatcher := reservation.NewDispatcher(reservationSvc, reservation.Options{
		Workers:   cfg.ReservationWorkers,
		QueueSize: cfg.ReservationQueueSize,
	}, m, log)
	log.Debug("Dispatcher de reservas inicializado.", nil)

	orderSvc := orderservice.NewService(listings, commissions, mp, log)
	listingSvc := listingservice.NewService(listings, locker, log)

	orderHandler := order.NewHandler(orderSvc, dispatcher, log)
	listingHandler := listing.NewHandler(listingSvc, log)
	log.Debug("Handlers inicializados.", nil)

	// 4. Configuração e Início do Roteador/Servidor
	deps := router.Deps{
		Order:    orderHandler,
		Listing:  listingHandler,
		Auth:     middleware.NewAuthMiddleware(token.NewInspector(cfg.TokenLeeway), mp, log),
		Metrics:  m.Handler(),
		Observer: m,
		Logger:   log,
	}
	if redisClient != nil {
		deps.RateLimit = middleware.RateLimiter(redisClient, cfg.RateLimitMaxRequests, cfg.RateLimitPeriod, log)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Execução e Graceful Shutdown
	go func() {
		log.Info("Servidor GoStorefront ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Servidor falhou.", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Desligamento do servidor forçado.", err)
	}

	// Reservas já agendadas ainda são aplicadas antes de sair.
	if err := dispatcher.Shutdown(ctx); err != nil {
		log.Error("Reservas pendentes não foram concluídas antes do prazo.", err)
	}

	if err := shutdownTracer(ctx); err != nil {
		log.Error("Falha ao encerrar o tracing.", err)
	}

	log.Info("Servidor encerrado com sucesso.", nil)
}
