package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
)

const commissionAssetPath = "/transactions/commission.json"

// Initiate inicia a transação com o token confiável do usuário.
func (c *Client) Initiate(ctx context.Context, body domain.BodyParams, query map[string]interface{}) (domain.APIResponse, error) {
	return c.initiate(ctx, "initiate_transaction", "/transactions/initiate", body, query)
}

// InitiateSpeculative calcula a transação sem criá-la (prévia de preço).
func (c *Client) InitiateSpeculative(ctx context.Context, body domain.BodyParams, query map[string]interface{}) (domain.APIResponse, error) {
	return c.initiate(ctx, "initiate_speculative", "/transactions/initiate_speculative", body, query)
}

func (c *Client) initiate(ctx context.Context, op, path string, body domain.BodyParams, query map[string]interface{}) (domain.APIResponse, error) {
	userToken, ok := UserToken(ctx)
	if !ok {
		return domain.APIResponse{}, apperror.NewUnauthorizedError("Token do usuário ausente.")
	}

	trusted, err := c.tokens.Trusted(ctx, userToken)
	if err != nil {
		return domain.APIResponse{}, err
	}

	res, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		url:    c.apiURL(path),
		query:  encodeQuery(query),
		body:   body,
		token:  trusted,
	})
	if err != nil {
		return domain.APIResponse{}, err
	}

	return domain.APIResponse{
		Status:     res.status,
		StatusText: res.statusText,
		Data:       jsonOrString(res.body),
	}, nil
}

// encodeQuery converte os queryParams do cliente (e.g., {"expand": true, "include": ["listing"]})
// para a query string da API. Listas são unidas por vírgula.
func encodeQuery(params map[string]interface{}) url.Values {
	if len(params) == 0 {
		return nil
	}
	q := url.Values{}
	for k, v := range params {
		switch val := v.(type) {
		case nil:
		case []string:
			q.Set(k, strings.Join(val, ","))
		case []interface{}:
			items := make([]string, len(val))
			for i, item := range val {
				items[i] = fmt.Sprint(item)
			}
			q.Set(k, strings.Join(items, ","))
		default:
			q.Set(k, fmt.Sprint(val))
		}
	}
	return q
}

// FetchCommission lê o asset de comissões. Sem asset publicado, devolve comissões vazias.
func (c *Client) FetchCommission(ctx context.Context) (domain.Commission, error) {
	res, err := c.do(ctx, request{
		op:     "fetch_commission",
		method: http.MethodGet,
		url:    fmt.Sprintf("%s/pub/%s/a/latest%s", c.cfg.AssetsURL, c.cfg.ClientID, commissionAssetPath),
	})
	if err != nil {
		var mErr *apperror.MarketplaceError
		if errors.As(err, &mErr) && mErr.Status == http.StatusNotFound {
			return domain.Commission{}, nil
		}
		return domain.Commission{}, err
	}

	var env assetEnvelope
	if err := json.Unmarshal(res.body, &env); err != nil {
		return domain.Commission{}, apperror.NewInternalError("Asset de comissão inválido.", errors.Wrap(err, "decodificando asset"))
	}

	asset, ok := env.first()
	if !ok || asset.Type != "jsonAsset" {
		return domain.Commission{}, nil
	}

	var commission domain.Commission
	if err := json.Unmarshal(asset.Attributes.Data, &commission); err != nil {
		return domain.Commission{}, apperror.NewInternalError("Asset de comissão inválido.", errors.Wrap(err, "decodificando comissão"))
	}
	return commission, nil
}

// CurrentUser confirma o token junto à API e devolve o usuário dono dele.
func (c *Client) CurrentUser(ctx context.Context, userToken string) (domain.User, error) {
	res, err := c.do(ctx, request{
		op:     "current_user",
		method: http.MethodGet,
		url:    c.apiURL("/current_user/show"),
		token:  userToken,
	})
	if err != nil {
		var mErr *apperror.MarketplaceError
		if errors.As(err, &mErr) && (mErr.Status == http.StatusUnauthorized || mErr.Status == http.StatusForbidden) {
			return domain.User{}, apperror.NewUnauthorizedError("Token inválido ou expirado.")
		}
		return domain.User{}, err
	}

	var env userEnvelope
	if err := json.Unmarshal(res.body, &env); err != nil {
		return domain.User{}, apperror.NewInternalError("Usuário inválido recebido do marketplace.", errors.Wrap(err, "decodificando usuário"))
	}
	if env.Data.ID == "" {
		return domain.User{}, apperror.NewUnauthorizedError("Usuário não encontrado para o token.")
	}
	return domain.User{ID: string(env.Data.ID), DisplayName: env.Data.Attributes.Profile.DisplayName}, nil
}
