// Package reservation executa as reservas de estoque em segundo plano, depois que a
// resposta da iniciação já foi enviada ao cliente.
package reservation

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
	"gostorefront/internal/pkg/logger"
	"gostorefront/internal/pkg/metrics"
)

// ErrQueueFull indica que a fila do anúncio estava cheia e a reserva foi descartada.
var ErrQueueFull = errors.New("fila de reservas cheia")

// Applier aplica uma reserva (reservationservice.Service).
type Applier interface {
	Apply(ctx context.Context, req domain.ReservationRequest) (domain.Listing, error)
}

// Recorder recebe os resultados para métricas.
type Recorder interface {
	Reservation(result string)
	QueueDepth(delta float64)
}

// Options configura o Dispatcher.
type Options struct {
	// Workers é o número de filas. Reservas do mesmo anúncio caem sempre na mesma fila,
	// em ordem de chegada.
	Workers int
	// QueueSize é a capacidade de cada fila. Com a fila cheia, a reserva é descartada.
	QueueSize int
}

type job struct {
	ctx context.Context
	req domain.ReservationRequest
}

// Dispatcher distribui as reservas entre workers por anúncio.
type Dispatcher struct {
	applier  Applier
	recorder Recorder
	logger   logger.Logger

	mu     sync.RWMutex
	closed bool
	queues []chan job
	wg     sync.WaitGroup
}

// NewDispatcher cria o Dispatcher e inicia os workers. recorder pode ser nil.
func NewDispatcher(applier Applier, opts Options, recorder Recorder, logger logger.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	d := &Dispatcher{
		applier:  applier,
		recorder: recorder,
		logger:   logger,
		queues:   make([]chan job, opts.Workers),
	}
	for i := range d.queues {
		d.queues[i] = make(chan job, opts.QueueSize)
		d.wg.Add(1)
		go d.worker(d.queues[i])
	}
	return d
}

// Schedule enfileira a reserva sem bloquear. O contexto é desligado do cancelamento da
// requisição, mas mantém seus valores (trace, request id). Devolve false se a reserva foi descartada.
func (d *Dispatcher) Schedule(ctx context.Context, req domain.ReservationRequest) bool {
	fields := map[string]interface{}{
		"transaction_id": req.TransactionID,
		"listing_id":     req.ListingID,
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.recorder.Reservation(metrics.ReservationDropped)
		d.logger.Warn("Reserva descartada: dispatcher encerrado.", fields)
		return false
	}

	select {
	case d.queues[d.shard(req.ListingID)] <- job{ctx: context.WithoutCancel(ctx), req: req}:
		d.recorder.QueueDepth(1)
		d.logger.Debug("Reserva agendada.", fields)
		return true
	default:
		d.recorder.Reservation(metrics.ReservationDropped)
		d.logger.With(fields).Error("Reserva descartada.", ErrQueueFull)
		return false
	}
}

func (d *Dispatcher) shard(listingID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(listingID))
	return int(h.Sum32() % uint32(len(d.queues)))
}

func (d *Dispatcher) worker(queue <-chan job) {
	defer d.wg.Done()
	for j := range queue {
		d.recorder.QueueDepth(-1)
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			d.recorder.Reservation(metrics.ReservationFailed)
			d.logger.Warn("Pânico ao aplicar reserva.", map[string]interface{}{
				"transaction_id": j.req.TransactionID,
				"listing_id":     j.req.ListingID,
				"panic":          r,
			})
		}
	}()

	// O Applier já registra a falha com o id da transação; aqui só contamos.
	_, err := d.applier.Apply(j.ctx, j.req)
	switch {
	case err == nil:
		d.recorder.Reservation(metrics.ReservationApplied)
	case apperror.IsConflict(err):
		d.recorder.Reservation(metrics.ReservationConflict)
	default:
		d.recorder.Reservation(metrics.ReservationFailed)
	}
}

// Shutdown para de aceitar reservas e espera as filas esvaziarem ou o contexto expirar.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nopRecorder struct{}

func (nopRecorder) Reservation(string) {}
func (nopRecorder) QueueDepth(float64) {}
