package marketplace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	apperror "gostorefront/internal/errors"
)

type contextKey int

const userTokenKey contextKey = iota

// WithUserToken anexa ao contexto o token de acesso do usuário que fez a requisição.
func WithUserToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, userTokenKey, token)
}

// UserToken devolve o token anexado por WithUserToken.
func UserToken(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(userTokenKey).(string)
	return tok, ok && tok != ""
}

// tokenSource obtém tokens do endpoint de autenticação:
// client_credentials para a Integration API (com cache até expirar) e
// token_exchange para transformar o token do usuário em um token confiável.
type tokenSource struct {
	cfg  Config
	http *http.Client
	now  func() time.Time

	mu          sync.Mutex
	integration string
	expiresAt   time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// margem para renovar o token antes de expirar
const tokenRefreshMargin = 30 * time.Second

func newTokenSource(cfg Config, httpClient *http.Client) *tokenSource {
	return &tokenSource{cfg: cfg, http: httpClient, now: time.Now}
}

// Integration devolve um token válido da Integration API.
func (s *tokenSource) Integration(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.integration != "" && s.now().Before(s.expiresAt) {
		return s.integration, nil
	}

	tok, err := s.fetch(ctx, url.Values{
		"client_id":     {s.cfg.IntegrationClientID},
		"client_secret": {s.cfg.IntegrationClientSecret},
		"grant_type":    {"client_credentials"},
		"scope":         {"integ"},
	})
	if err != nil {
		return "", err
	}

	s.integration = tok.AccessToken
	s.expiresAt = s.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenRefreshMargin)
	return s.integration, nil
}

// Trusted troca o token do usuário por um token confiável, necessário nas
// transições privilegiadas (que recebem line items calculados no servidor).
func (s *tokenSource) Trusted(ctx context.Context, userToken string) (string, error) {
	tok, err := s.fetch(ctx, url.Values{
		"client_id":     {s.cfg.ClientID},
		"client_secret": {s.cfg.ClientSecret},
		"grant_type":    {"token_exchange"},
		"scope":         {"trusted:user"},
		"subject_token": {userToken},
	})
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (s *tokenSource) fetch(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/v1/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "marketplace auth: montando requisição")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, apperror.NewInternalError("Falha ao autenticar no marketplace.", errors.Wrap(err, "marketplace auth"))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.NewInternalError("Falha ao ler resposta de autenticação.", errors.Wrap(err, "marketplace auth"))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &apperror.MarketplaceError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Data:       jsonOrString(raw),
		}
	}

	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, apperror.NewInternalError("Resposta de autenticação inválida.", errors.Wrap(err, "marketplace auth"))
	}
	if tok.AccessToken == "" {
		return nil, apperror.NewInternalError("Resposta de autenticação sem access_token.", nil)
	}
	return &tok, nil
}
