package listingrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gostorefront/internal/domain"
	"gostorefront/internal/errors"
	"gostorefront/internal/pkg/logger"
)

// ListingRepository persiste anúncios no PostgreSQL. publicData fica em uma coluna JSONB
// e a coluna version implementa o controle de concorrência otimista (OCC).
type ListingRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewListingRepository cria e retorna uma nova instância do Repositório de Anúncios.
func NewListingRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *ListingRepository {
	return &ListingRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

const listingColumns = `id, author_id, title, price_amount, price_currency, public_data, version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (domain.Listing, error) {
	var (
		l        domain.Listing
		amount   sql.NullInt64
		currency sql.NullString
		public   []byte
	)
	if err := row.Scan(&l.ID, &l.AuthorID, &l.Title, &amount, &currency, &public, &l.Version); err != nil {
		return domain.Listing{}, err
	}
	if amount.Valid && currency.Valid {
		l.Price = &domain.Money{Amount: amount.Int64, Currency: currency.String}
	}
	if len(public) > 0 {
		if err := json.Unmarshal(public, &l.PublicData); err != nil {
			return domain.Listing{}, fmt.Errorf("public_data inválido: %w", err)
		}
	}
	return l, nil
}

// Show busca o anúncio pelo ID, incluindo a versão atual.
func (r *ListingRepository) Show(ctx context.Context, id string) (domain.Listing, error) {
	r.logger.Debug("Buscando anúncio no repositório.", map[string]interface{}{"listing_id": id})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	l, err := scanListing(r.DB.QueryRowContext(ctxTimeout, query, id))
	if err == sql.ErrNoRows {
		r.logger.Info("Anúncio não encontrado.", map[string]interface{}{"listing_id": id})
		return domain.Listing{}, errors.NewNotFoundError(fmt.Sprintf("Anúncio %s não encontrado.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar anúncio no DB.", err)
		return domain.Listing{}, errors.NewDBError("Falha ao buscar anúncio", err)
	}
	return l, nil
}

// QueryByAuthor lista os anúncios do autor, do mais antigo para o mais novo.
func (r *ListingRepository) QueryByAuthor(ctx context.Context, authorID string) ([]domain.Listing, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + listingColumns + ` FROM listings WHERE author_id = $1 ORDER BY created_at, id`

	rows, err := r.DB.QueryContext(ctxTimeout, query, authorID)
	if err != nil {
		r.logger.Error("Falha ao listar anúncios do autor.", err)
		return nil, errors.NewDBError("Falha ao listar anúncios", err)
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			r.logger.Error("Falha ao ler anúncio.", err)
			return nil, errors.NewDBError("Falha ao ler anúncio", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar anúncios", err)
	}
	return out, nil
}

// UpdateVariants grava publicData.variants com OCC: só atualiza se a versão ainda for expectedVersion.
// Apenas a chave variants do JSONB é substituída (jsonb_set); as demais chaves são preservadas.
func (r *ListingRepository) UpdateVariants(ctx context.Context, id string, expectedVersion int64, variants []domain.Variant) (domain.Listing, error) {
	if variants == nil {
		variants = []domain.Variant{}
	}
	payload, err := json.Marshal(variants)
	if err != nil {
		return domain.Listing{}, errors.NewInternalError("Falha ao serializar variantes", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        UPDATE listings
        SET public_data = jsonb_set(COALESCE(public_data, '{}'::jsonb), '{variants}', $1::jsonb, true),
            version = version + 1,
            updated_at = $2
        WHERE id = $3 AND version = $4
        RETURNING ` + listingColumns

	l, err := scanListing(r.DB.QueryRowContext(ctxTimeout, query, string(payload), time.Now(), id, expectedVersion))
	if err == sql.ErrNoRows {
		return domain.Listing{}, r.missOrConflict(ctxTimeout, id, expectedVersion)
	}
	if err != nil {
		r.logger.Error("Falha ao atualizar variantes.", err)
		return domain.Listing{}, errors.NewDBError("Falha ao atualizar variantes", err)
	}

	r.logger.Info("Variantes do anúncio atualizadas.", map[string]interface{}{
		"listing_id":  id,
		"new_version": l.Version,
	})
	return l, nil
}

// missOrConflict distingue anúncio inexistente de versão desatualizada.
func (r *ListingRepository) missOrConflict(ctx context.Context, id string, expectedVersion int64) error {
	var current int64
	err := r.DB.QueryRowContext(ctx, `SELECT version FROM listings WHERE id = $1`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return errors.NewNotFoundError(fmt.Sprintf("Anúncio %s não encontrado.", id))
	}
	if err != nil {
		return errors.NewDBError("Falha ao verificar versão do anúncio", err)
	}

	r.logger.Warn("Falha no controle de concorrência otimista (OCC). Versão do registro desatualizada.", map[string]interface{}{
		"listing_id":       id,
		"expected_version": expectedVersion,
		"current_version":  current,
	})
	return errors.NewConflictError("O anúncio foi modificado por outra operação. Tente novamente.")
}

// UpdatePublicData mescla as chaves do patch em publicData (operador || do JSONB).
func (r *ListingRepository) UpdatePublicData(ctx context.Context, id string, patch map[string]interface{}) (domain.Listing, error) {
	payload, err := json.Marshal(patch)
	if err != nil {
		return domain.Listing{}, errors.NewInternalError("Falha ao serializar publicData", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        UPDATE listings
        SET public_data = COALESCE(public_data, '{}'::jsonb) || $1::jsonb,
            version = version + 1,
            updated_at = $2
        WHERE id = $3
        RETURNING ` + listingColumns

	l, err := scanListing(r.DB.QueryRowContext(ctxTimeout, query, string(payload), time.Now(), id))
	if err == sql.ErrNoRows {
		return domain.Listing{}, errors.NewNotFoundError(fmt.Sprintf("Anúncio %s não encontrado.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao atualizar publicData.", err)
		return domain.Listing{}, errors.NewDBError("Falha ao atualizar publicData", err)
	}
	return l, nil
}
