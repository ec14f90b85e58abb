package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
)

// maxQueryPages limita a paginação de QueryByAuthor.
const maxQueryPages = 50

// Show busca o anúncio pelo id, sempre direto na API (nunca em cache).
// O Version devolvido é 0: a API não oferece escrita condicional.
func (c *Client) Show(ctx context.Context, id string) (domain.Listing, error) {
	tok, err := c.tokens.Integration(ctx)
	if err != nil {
		return domain.Listing{}, err
	}

	res, err := c.do(ctx, request{
		op:     "show_listing",
		method: http.MethodGet,
		url:    c.integrationURL("/listings/show"),
		query:  url.Values{"id": {id}, "include": {"author"}},
		token:  tok,
	})
	if err != nil {
		return domain.Listing{}, asNotFound(err, "Anúncio "+id)
	}

	var env listingEnvelope
	if err := json.Unmarshal(res.body, &env); err != nil {
		return domain.Listing{}, apperror.NewInternalError("Anúncio inválido recebido do marketplace.", errors.Wrap(err, "decodificando listing"))
	}
	return env.Data.toDomain(), nil
}

// QueryByAuthor lista todos os anúncios do autor, percorrendo as páginas.
func (c *Client) QueryByAuthor(ctx context.Context, authorID string) ([]domain.Listing, error) {
	tok, err := c.tokens.Integration(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.Listing
	for page := 1; page <= maxQueryPages; page++ {
		res, err := c.do(ctx, request{
			op:     "query_listings",
			method: http.MethodGet,
			url:    c.integrationURL("/listings/query"),
			query: url.Values{
				"authorId": {authorID},
				"include":  {"author"},
				"page":     {strconv.Itoa(page)},
			},
			token: tok,
		})
		if err != nil {
			return nil, err
		}

		var env listingsEnvelope
		if err := json.Unmarshal(res.body, &env); err != nil {
			return nil, apperror.NewInternalError("Lista de anúncios inválida recebida do marketplace.", errors.Wrap(err, "decodificando listings"))
		}
		for _, r := range env.Data {
			l := r.toDomain()
			if l.AuthorID == "" {
				l.AuthorID = authorID
			}
			out = append(out, l)
		}

		if env.Meta.TotalPages <= page {
			break
		}
	}
	return out, nil
}

// UpdateVariants substitui publicData.variants. A API atualiza publicData por chave
// de primeiro nível, então os demais campos de publicData não são tocados.
// expectedVersion é ignorado: a serialização fica a cargo do lock por anúncio.
func (c *Client) UpdateVariants(ctx context.Context, id string, expectedVersion int64, variants []domain.Variant) (domain.Listing, error) {
	if variants == nil {
		variants = []domain.Variant{}
	}
	return c.update(ctx, "update_variants", id, map[string]interface{}{"variants": variants})
}

// UpdatePublicData aplica um patch de chaves de primeiro nível em publicData.
func (c *Client) UpdatePublicData(ctx context.Context, id string, patch map[string]interface{}) (domain.Listing, error) {
	return c.update(ctx, "update_public_data", id, patch)
}

func (c *Client) update(ctx context.Context, op, id string, publicData map[string]interface{}) (domain.Listing, error) {
	tok, err := c.tokens.Integration(ctx)
	if err != nil {
		return domain.Listing{}, err
	}

	res, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		url:    c.integrationURL("/listings/update"),
		query:  url.Values{"expand": {"true"}, "include": {"author"}},
		body: map[string]interface{}{
			"id":         id,
			"publicData": publicData,
		},
		token: tok,
	})
	if err != nil {
		return domain.Listing{}, asNotFound(err, "Anúncio "+id)
	}

	var env listingEnvelope
	if err := json.Unmarshal(res.body, &env); err != nil {
		return domain.Listing{}, apperror.NewInternalError("Anúncio inválido recebido do marketplace.", errors.Wrap(err, "decodificando listing"))
	}
	return env.Data.toDomain(), nil
}

// asNotFound traduz o 404 da API para NotFoundError.
func asNotFound(err error, what string) error {
	var mErr *apperror.MarketplaceError
	if errors.As(err, &mErr) && mErr.Status == http.StatusNotFound {
		return apperror.NewNotFoundError(what)
	}
	return err
}
