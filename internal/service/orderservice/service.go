package orderservice

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
	"gostorefront/internal/lineitems"
	"gostorefront/internal/pkg/logger"
	"gostorefront/internal/variant"
)

// ListingReader busca o anúncio, sempre atualizado.
type ListingReader interface {
	Show(ctx context.Context, id string) (domain.Listing, error)
}

// CommissionFetcher busca o asset de comissões.
type CommissionFetcher interface {
	FetchCommission(ctx context.Context) (domain.Commission, error)
}

// TransactionInitiator inicia transações na API do marketplace.
type TransactionInitiator interface {
	Initiate(ctx context.Context, body domain.BodyParams, query map[string]interface{}) (domain.APIResponse, error)
	InitiateSpeculative(ctx context.Context, body domain.BodyParams, query map[string]interface{}) (domain.APIResponse, error)
}

// Service orquestra a iniciação de pedidos.
type Service struct {
	listings     ListingReader
	commissions  CommissionFetcher
	transactions TransactionInitiator
	tracer       trace.Tracer
	logger       logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Pedidos.
func NewService(listings ListingReader, commissions CommissionFetcher, transactions TransactionInitiator, logger logger.Logger) *Service {
	return &Service{
		listings:     listings,
		commissions:  commissions,
		transactions: transactions,
		tracer:       otel.Tracer("gostorefront/orderservice"),
		logger:       logger,
	}
}

// Result é o resultado da iniciação. Reservation só é preenchido em iniciações
// não especulativas e deve ser agendado depois que a resposta for enviada.
type Result struct {
	Response    domain.APIResponse
	Reservation *domain.ReservationRequest
}

// Initiate valida a variante pedida, calcula os line items e inicia a transação.
func (s *Service) Initiate(ctx context.Context, req domain.InitiateRequest) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "orderservice.Initiate")
	defer span.End()

	listingID := req.BodyParams.ListingID()
	if listingID == "" {
		return Result{}, apperror.NewValidationError("bodyParams.params.listingId é obrigatório.")
	}
	span.SetAttributes(
		attribute.String("listing.id", listingID),
		attribute.Bool("transaction.speculative", req.IsSpeculative),
	)

	// Anúncio e comissões não dependem um do outro.
	var (
		listing    domain.Listing
		commission domain.Commission
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listing, err = s.listings.Show(gctx, listingID)
		return err
	})
	g.Go(func() error {
		var err error
		commission, err = s.commissions.FetchCommission(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Falha ao buscar anúncio ou comissões.", err)
		return Result{}, err
	}

	order := MergeOrderData(req.OrderData, req.BodyParams.Params)

	v, err := variant.Resolve(listing.Variants(), order)
	if err != nil {
		s.logger.Info("Pedido recusado na validação de variante.", map[string]interface{}{
			"listing_id": listingID,
			"reason":     err.Error(),
		})
		return Result{}, err
	}

	items, err := lineitems.Compute(listing, order, &v, commission)
	if err != nil {
		return Result{}, err
	}

	body := withLineItems(req.BodyParams, items)

	var res domain.APIResponse
	if req.IsSpeculative {
		res, err = s.transactions.InitiateSpeculative(ctx, body, req.QueryParams)
	} else {
		res, err = s.transactions.Initiate(ctx, body, req.QueryParams)
	}
	if err != nil {
		s.logger.Error("Falha ao iniciar transação no marketplace.", err)
		return Result{}, err
	}

	out := Result{Response: res}
	if !req.IsSpeculative {
		out.Reservation = &domain.ReservationRequest{
			ListingID:     listingID,
			TransactionID: res.TransactionID(),
			Order:         order,
		}
		s.logger.Info("Transação iniciada.", map[string]interface{}{
			"listing_id":     listingID,
			"transaction_id": out.Reservation.TransactionID,
			"variant_id":     v.ID,
		})
	}
	return out, nil
}

// withLineItems copia os bodyParams acrescentando params.lineItems.
func withLineItems(b domain.BodyParams, items []domain.LineItem) domain.BodyParams {
	params := make(map[string]interface{}, len(b.Params)+1)
	for k, v := range b.Params {
		params[k] = v
	}
	params["lineItems"] = items
	b.Params = params
	return b
}

// MergeOrderData sobrepõe aos dados do pedido os campos equivalentes de bodyParams.params,
// que têm precedência.
func MergeOrderData(order domain.OrderData, params map[string]interface{}) domain.OrderData {
	if s, ok := params["color"].(string); ok {
		order.Color = s
	}
	if s, ok := params["size"].(string); ok {
		order.Size = s
	}
	if s, ok := params["material"].(string); ok {
		order.Material = s
	}
	if q, ok := asInt(params["stockReservationQuantity"]); ok {
		order.StockReservationQuantity = q
	}
	return order
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
