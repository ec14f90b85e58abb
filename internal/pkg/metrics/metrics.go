// Package metrics concentra os coletores Prometheus da vitrine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resultados possíveis de uma reserva de estoque.
const (
	ReservationApplied  = "applied"
	ReservationFailed   = "failed"
	ReservationDropped  = "dropped"
	ReservationConflict = "conflict"
)

// Metrics agrupa os coletores registrados em um Registry próprio.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	reservations *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	upstream     *prometheus.HistogramVec
}

// New cria e registra os coletores. Cada chamada usa um Registry novo,
// o que permite instâncias independentes nos testes.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "http_requests_total",
			Help:      "Requisições HTTP atendidas, por rota e status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "http_request_duration_seconds",
			Help:      "Latência das requisições HTTP.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "stock_reservations_total",
			Help:      "Reservas de estoque por resultado.",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Name:      "stock_reservation_queue_depth",
			Help:      "Reservas aguardando execução.",
		}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "marketplace_request_duration_seconds",
			Help:      "Latência das chamadas à API do marketplace.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.reservations, m.queueDepth, m.upstream,
	)
	return m
}

// Handler expõe o endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) Reservation(result string) {
	m.reservations.WithLabelValues(result).Inc()
}

func (m *Metrics) QueueDepth(delta float64) {
	m.queueDepth.Add(delta)
}

func (m *Metrics) ObserveUpstream(operation string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.upstream.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}
