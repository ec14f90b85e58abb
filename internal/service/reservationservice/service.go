package reservationservice

import (
	"context"
	"time"

	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
	"gostorefront/internal/pkg/lock"
	"gostorefront/internal/pkg/logger"
	"gostorefront/internal/pkg/retry"
	"gostorefront/internal/variant"
)

// ListingStore define o contrato que o Serviço de Reserva espera de onde os anúncios vivem
// (API do marketplace ou PostgreSQL).
type ListingStore interface {
	Show(ctx context.Context, id string) (domain.Listing, error)
	UpdateVariants(ctx context.Context, id string, expectedVersion int64, variants []domain.Variant) (domain.Listing, error)
}

// Service aplica reservas de estoque depois que a transação foi iniciada.
type Service struct {
	store  ListingStore
	locker lock.Locker
	policy retry.Policy
	logger logger.Logger
}

// DefaultMaxAttempts é o número de tentativas quando a gravação encontra versão desatualizada.
const DefaultMaxAttempts = 5

// NewService cria e retorna uma nova instância do Serviço de Reserva.
func NewService(store ListingStore, locker lock.Locker, maxAttempts int, logger logger.Logger) *Service {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{
		store:  store,
		locker: locker,
		policy: retry.Policy{
			MaxAttempts: maxAttempts,
			Backoff:     retry.ExponentialBackoff(20 * time.Millisecond),
			ShouldRetry: apperror.IsConflict,
		},
		logger: logger,
	}
}

// Apply relê o anúncio, resolve novamente a variante do pedido e grava o catálogo com o
// estoque dela reduzido. Roda sob o lock do anúncio e repete em caso de conflito de versão.
//
// A reserva é best-effort: erros são registrados com o id da transação e devolvidos a quem
// agendou a execução, nunca ao cliente HTTP. Aplicar o mesmo pedido duas vezes reduz o
// estoque duas vezes, pois não há chave de idempotência.
func (s *Service) Apply(ctx context.Context, req domain.ReservationRequest) (domain.Listing, error) {
	log := s.logger.With(map[string]interface{}{
		"transaction_id": req.TransactionID,
		"listing_id":     req.ListingID,
	})

	if req.ListingID == "" {
		err := apperror.NewValidationError("listingId é obrigatório para reservar estoque.")
		log.Error("Reserva de estoque ignorada.", err)
		return domain.Listing{}, err
	}
	if req.Order.StockReservationQuantity <= 0 {
		err := apperror.NewValidationError("stockReservationQuantity deve ser maior que zero.")
		log.Error("Reserva de estoque ignorada.", err)
		return domain.Listing{}, err
	}

	leaseCtx, unlock, err := s.locker.Lock(ctx, req.ListingID)
	if err != nil {
		log.Error("Falha ao obter lock do anúncio para reserva.", err)
		return domain.Listing{}, apperror.NewInternalError("Falha ao obter lock do anúncio.", err)
	}
	defer unlock()

	attempts := 0
	updated, err := retry.DoWithResult(leaseCtx, s.policy, func() (domain.Listing, error) {
		attempts++
		return s.reserveOnce(leaseCtx, req)
	})
	if err != nil {
		log.Error("Falha ao aplicar reserva de estoque.", err)
		return domain.Listing{}, err
	}

	log.Info("Reserva de estoque aplicada.", map[string]interface{}{
		"quantity":    req.Order.StockReservationQuantity,
		"attempts":    attempts,
		"new_version": updated.Version,
	})
	return updated, nil
}

// reserveOnce faz uma tentativa de leitura-resolução-gravação. ctx é o contexto da posse
// do lock; se ela terminou durante a leitura, nada é gravado.
func (s *Service) reserveOnce(ctx context.Context, req domain.ReservationRequest) (domain.Listing, error) {
	listing, err := s.store.Show(ctx, req.ListingID)
	if err != nil {
		return domain.Listing{}, err
	}

	variants, reserved, err := variant.Reserve(listing.Variants(), req.Order)
	if err != nil {
		return domain.Listing{}, err
	}

	s.logger.Debug("Variante resolvida para reserva.", map[string]interface{}{
		"listing_id": req.ListingID,
		"variant_id": reserved.ID,
		"new_stock":  reserved.Stock,
		"version":    listing.Version,
	})

	if ctx.Err() != nil {
		return domain.Listing{}, apperror.NewInternalError("Lock do anúncio perdido antes da gravação.", context.Cause(ctx))
	}
	return s.store.UpdateVariants(ctx, req.ListingID, listing.Version, variants)
}
