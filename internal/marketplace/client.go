// Package marketplace é o cliente HTTP da API hospedada do marketplace:
// Marketplace API (transações, usuário atual), Integration API (anúncios) e Asset Delivery API.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	apperror "gostorefront/internal/errors"
	"gostorefront/internal/pkg/logger"
)

const tracerName = "gostorefront/marketplace"

// Config reúne os endereços e credenciais da API hospedada.
type Config struct {
	BaseURL   string // e.g., https://flex-api.sharetribe.com
	AssetsURL string // e.g., https://cdn.st-api.com/v1/assets

	ClientID     string
	ClientSecret string

	IntegrationClientID     string
	IntegrationClientSecret string

	Timeout time.Duration
}

// Observer recebe a duração e o resultado de cada chamada (métricas).
type Observer interface {
	ObserveUpstream(operation string, err error, elapsed time.Duration)
}

// Client implementa as chamadas usadas pela vitrine.
type Client struct {
	cfg      Config
	http     *http.Client
	tokens   *tokenSource
	tracer   trace.Tracer
	observer Observer
	logger   logger.Logger
}

// New cria o Client. observer pode ser nil.
func New(cfg Config, observer Observer, logger logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.AssetsURL = strings.TrimRight(cfg.AssetsURL, "/")

	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:      cfg,
		http:     httpClient,
		tokens:   newTokenSource(cfg, httpClient),
		tracer:   otel.Tracer(tracerName),
		observer: observer,
		logger:   logger,
	}
}

// request descreve uma chamada à API.
type request struct {
	op     string // nome da operação, usado em spans e métricas
	method string
	url    string
	query  url.Values
	body   interface{}
	token  string
}

// response é a resposta bruta de uma chamada bem-sucedida.
type response struct {
	status     int
	statusText string
	body       []byte
}

// do executa a requisição com tracing e métricas. Status fora de 2xx vira MarketplaceError
// com o corpo original, para que o Handler possa repassá-lo ao cliente.
func (c *Client) do(ctx context.Context, r request) (res *response, err error) {
	ctx, span := c.tracer.Start(ctx, "marketplace."+r.op, trace.WithSpanKind(trace.SpanKindClient))
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveUpstream(r.op, err, time.Since(start))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	target := r.url
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, errors.Wrapf(err, "marketplace %s: serializando corpo", r.op)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, errors.Wrapf(err, "marketplace %s: montando requisição", r.op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.NewInternalError("Falha de comunicação com o marketplace.", errors.Wrapf(err, "marketplace %s", r.op))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.NewInternalError("Falha ao ler resposta do marketplace.", errors.Wrapf(err, "marketplace %s", r.op))
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Marketplace respondeu com erro.", map[string]interface{}{
			"operation": r.op,
			"status":    resp.StatusCode,
		})
		return nil, &apperror.MarketplaceError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Data:       jsonOrString(raw),
		}
	}

	return &response{status: resp.StatusCode, statusText: http.StatusText(resp.StatusCode), body: raw}, nil
}

// jsonOrString preserva corpos JSON e encapsula os demais como string JSON.
func jsonOrString(raw []byte) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

func (c *Client) apiURL(path string) string {
	return c.cfg.BaseURL + "/v1/api" + path
}

func (c *Client) integrationURL(path string) string {
	return c.cfg.BaseURL + "/v1/integration_api" + path
}
