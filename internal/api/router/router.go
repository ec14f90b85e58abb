package router

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "gostorefront/internal/api/docs" // registra o doc.json servido em /swagger/
	"gostorefront/internal/api/listing"
	"gostorefront/internal/api/order"
	"gostorefront/internal/pkg/logger"
	"gostorefront/internal/pkg/middleware"
)

// Middleware envolve um http.Handler.
type Middleware func(http.Handler) http.Handler

// Deps são os Handlers e middlewares já inicializados por injeção de dependências.
type Deps struct {
	Order   *order.Handler
	Listing *listing.Handler

	// Auth é obrigatório nas rotas da API. RateLimit pode ser nil.
	Auth      Middleware
	RateLimit Middleware

	Metrics  http.Handler
	Observer middleware.HTTPObserver
	Logger   logger.Logger
}

// NewRouter configura e retorna o roteador HTTP principal.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	// --- 1. Rotas de Health Check e Observabilidade ---
	mux.HandleFunc("GET /ping", PingHandler)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// --- 2. Rotas da API (autenticadas) ---
	api := func(h http.HandlerFunc) http.Handler {
		var out http.Handler = d.Auth(h)
		if d.RateLimit != nil {
			out = d.RateLimit(out)
		}
		return out
	}

	mux.Handle("POST /api/initiate-privileged", api(d.Order.InitiatePrivilegedHandler))
	mux.Handle("POST /api/update-shop-name-listings", api(d.Listing.UpdateShopNameHandler))
	mux.Handle("PUT /v1/listings/{id}/variants", api(d.Listing.ReplaceVariantsHandler))

	// --- 3. Middlewares Globais ---
	// AccessLog fica logo acima do mux para enxergar a rota resolvida.
	return middleware.RequestID(middleware.AccessLog(d.Logger, d.Observer)(mux))
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
