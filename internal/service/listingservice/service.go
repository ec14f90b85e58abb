package listingservice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
	"gostorefront/internal/pkg/lock"
	"gostorefront/internal/pkg/logger"
	"gostorefront/internal/pkg/retry"
	"gostorefront/internal/variant"
)

// ListingRepository define o contrato que este Serviço espera de onde os anúncios vivem.
type ListingRepository interface {
	Show(ctx context.Context, id string) (domain.Listing, error)
	QueryByAuthor(ctx context.Context, authorID string) ([]domain.Listing, error)
	UpdateVariants(ctx context.Context, id string, expectedVersion int64, variants []domain.Variant) (domain.Listing, error)
	UpdatePublicData(ctx context.Context, id string, patch map[string]interface{}) (domain.Listing, error)
}

// Service edita anúncios em nome do vendedor.
type Service struct {
	repo   ListingRepository
	locker lock.Locker
	policy retry.Policy
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Anúncios.
// O locker deve ser o mesmo usado pelas reservas.
func NewService(repo ListingRepository, locker lock.Locker, logger logger.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		policy: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.ExponentialBackoff(20 * time.Millisecond),
			ShouldRetry: apperror.IsConflict,
		},
		logger: logger,
	}
}

// --- Implementação: ReplaceVariants ---
func (s *Service) ReplaceVariants(ctx context.Context, userID, listingID string, variants []domain.Variant) (domain.Listing, error) {

	// 1. Validação de Regras de Negócio
	if listingID == "" {
		return domain.Listing{}, apperror.NewValidationError("O ID do anúncio é obrigatório.")
	}

	catalog := make([]domain.Variant, len(variants))
	copy(catalog, variants)
	for i := range catalog {
		if catalog[i].ID == "" {
			catalog[i].ID = uuid.New().String()
		}
	}
	if err := variant.ValidateCatalog(catalog); err != nil {
		return domain.Listing{}, err
	}

	// 2. Mesmo lock das reservas: nenhuma reserva lê o catálogo no meio da troca.
	leaseCtx, unlock, err := s.locker.Lock(ctx, listingID)
	if err != nil {
		s.logger.Error("Falha ao obter lock do anúncio.", err)
		return domain.Listing{}, apperror.NewInternalError("Falha ao obter lock do anúncio.", err)
	}
	defer unlock()

	// 3. Delegação para o Repositório, repetindo em conflito de versão
	updated, err := retry.DoWithResult(leaseCtx, s.policy, func() (domain.Listing, error) {
		listing, err := s.repo.Show(leaseCtx, listingID)
		if err != nil {
			return domain.Listing{}, err
		}
		if listing.AuthorID != userID {
			return domain.Listing{}, apperror.NewForbiddenError(fmt.Sprintf("Anúncio %s não pertence ao usuário.", listingID))
		}
		if leaseCtx.Err() != nil {
			return domain.Listing{}, apperror.NewInternalError("Lock do anúncio perdido antes da gravação.", context.Cause(leaseCtx))
		}
		return s.repo.UpdateVariants(leaseCtx, listingID, listing.Version, catalog)
	})
	if err != nil {
		return domain.Listing{}, err
	}

	s.logger.Info("Variantes do anúncio substituídas.", map[string]interface{}{
		"listing_id": listingID,
		"user_id":    userID,
		"variants":   len(catalog),
	})
	return updated, nil
}

// SyncShopName copia o nome de exibição do usuário para publicData.shopName de todos
// os anúncios dele. Para no primeiro erro; anúncios já atualizados permanecem assim.
func (s *Service) SyncShopName(ctx context.Context, user domain.User) (int, error) {
	if user.ID == "" {
		return 0, apperror.NewValidationError("Usuário sem ID.")
	}

	listings, err := s.repo.QueryByAuthor(ctx, user.ID)
	if err != nil {
		s.logger.Error("Falha ao buscar anúncios do usuário.", err)
		return 0, err
	}

	patch := map[string]interface{}{"shopName": user.DisplayName}
	updated := 0
	for _, l := range listings {
		if l.PublicData.ShopName == user.DisplayName {
			continue
		}
		if _, err := s.repo.UpdatePublicData(ctx, l.ID, patch); err != nil {
			s.logger.With(map[string]interface{}{"listing_id": l.ID}).Error("Falha ao atualizar shopName.", err)
			return updated, err
		}
		updated++
	}

	s.logger.Info("shopName sincronizado.", map[string]interface{}{
		"user_id":  user.ID,
		"listings": len(listings),
		"updated":  updated,
	})
	return updated, nil
}
