package orderservice_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
	"gostorefront/internal/pkg/logger"
	"gostorefront/internal/service/orderservice"
)

// MockMarketplace implementa ListingReader, CommissionFetcher e TransactionInitiator.
type MockMarketplace struct {
	mock.Mock
}

func (m *MockMarketplace) Show(ctx context.Context, id string) (domain.Listing, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Listing), args.Error(1)
}

func (m *MockMarketplace) FetchCommission(ctx context.Context) (domain.Commission, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Commission), args.Error(1)
}

func (m *MockMarketplace) Initiate(ctx context.Context, body domain.BodyParams, query map[string]interface{}) (domain.APIResponse, error) {
	args := m.Called(ctx, body, query)
	return args.Get(0).(domain.APIResponse), args.Error(1)
}

func (m *MockMarketplace) InitiateSpeculative(ctx context.Context, body domain.BodyParams, query map[string]interface{}) (domain.APIResponse, error) {
	args := m.Called(ctx, body, query)
	return args.Get(0).(domain.APIResponse), args.Error(1)
}

func shirt() domain.Listing {
	return domain.Listing{
		ID:    "listing-1",
		Price: &domain.Money{Amount: 2000, Currency: "BRL"},
		PublicData: domain.PublicData{Variants: []domain.Variant{
			{ID: "A", Attributes: domain.Attributes{Color: "black"}, Stock: 10},
			{ID: "B", Attributes: domain.Attributes{Color: "white"}, Stock: 3},
		}},
	}
}

func initiateRequest(speculative bool, order domain.OrderData) domain.InitiateRequest {
	return domain.InitiateRequest{
		IsSpeculative: speculative,
		OrderData:     order,
		BodyParams: domain.BodyParams{
			ProcessAlias: "default-purchase/release-1",
			Transition:   "transition/request-payment",
			Params:       map[string]interface{}{"listingId": "listing-1"},
		},
		QueryParams: map[string]interface{}{"expand": true},
	}
}

var txResponse = domain.APIResponse{
	Status:     200,
	StatusText: "OK",
	Data:       json.RawMessage(`{"data":{"id":{"uuid":"tx-1"},"type":"transaction"}}`),
}

func TestInitiate_SchedulesReservationForRealPurchase(t *testing.T) {
	mp := new(MockMarketplace)
	svc := orderservice.NewService(mp, mp, mp, logger.NewNop())

	mp.On("Show", mock.Anything, "listing-1").Return(shirt(), nil)
	mp.On("FetchCommission", mock.Anything).Return(domain.Commission{
		ProviderCommission: &domain.CommissionRate{Percentage: decimal.NewFromInt(10)},
	}, nil)

	var sent domain.BodyParams
	mp.On("Initiate", mock.Anything, mock.AnythingOfType("domain.BodyParams"), map[string]interface{}{"expand": true}).
		Run(func(args mock.Arguments) { sent = args.Get(1).(domain.BodyParams) }).
		Return(txResponse, nil)

	res, err := svc.Initiate(context.Background(), initiateRequest(false, domain.OrderData{Color: "white", StockReservationQuantity: 2}))

	require.NoError(t, err)
	assert.Equal(t, txResponse, res.Response)
	require.NotNil(t, res.Reservation)
	assert.Equal(t, domain.ReservationRequest{
		ListingID:     "listing-1",
		TransactionID: "tx-1",
		Order:         domain.OrderData{Color: "white", StockReservationQuantity: 2},
	}, *res.Reservation)

	items := sent.Params["lineItems"].([]domain.LineItem)
	require.Len(t, items, 2)
	assert.Equal(t, domain.LineItemCodeItem, items[0].Code)
	assert.Equal(t, domain.LineItemCodeProviderCommission, items[1].Code)
	assert.Equal(t, "listing-1", sent.Params["listingId"])
	mp.AssertNotCalled(t, "InitiateSpeculative", mock.Anything, mock.Anything, mock.Anything)
}

func TestInitiate_SpeculativeDoesNotReserve(t *testing.T) {
	mp := new(MockMarketplace)
	svc := orderservice.NewService(mp, mp, mp, logger.NewNop())

	mp.On("Show", mock.Anything, "listing-1").Return(shirt(), nil)
	mp.On("FetchCommission", mock.Anything).Return(domain.Commission{}, nil)
	mp.On("InitiateSpeculative", mock.Anything, mock.Anything, mock.Anything).Return(txResponse, nil)

	res, err := svc.Initiate(context.Background(), initiateRequest(true, domain.OrderData{Color: "black", StockReservationQuantity: 1}))

	require.NoError(t, err)
	assert.Nil(t, res.Reservation)
	mp.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything, mock.Anything)
}

func TestInitiate_VariantErrorsStopBeforeInitiation(t *testing.T) {
	tests := []struct {
		name  string
		order domain.OrderData
		want  error
	}{
		{"sem atributos", domain.OrderData{StockReservationQuantity: 1}, apperror.ErrAttributeRequired},
		{"variante inexistente", domain.OrderData{Color: "purple", StockReservationQuantity: 1}, apperror.ErrVariantNotFound},
		{"estoque insuficiente", domain.OrderData{Color: "white", StockReservationQuantity: 4}, apperror.ErrVariantStockNotEnough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp := new(MockMarketplace)
			svc := orderservice.NewService(mp, mp, mp, logger.NewNop())
			mp.On("Show", mock.Anything, "listing-1").Return(shirt(), nil)
			mp.On("FetchCommission", mock.Anything).Return(domain.Commission{}, nil)

			_, err := svc.Initiate(context.Background(), initiateRequest(false, tt.order))

			assert.ErrorIs(t, err, tt.want)
			mp.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// TestInitiate_FetchesConcurrently testa que anúncio e comissões são buscados em paralelo.
func TestInitiate_FetchesConcurrently(t *testing.T) {
	mp := new(MockMarketplace)
	svc := orderservice.NewService(mp, mp, mp, logger.NewNop())

	var inFlight, peak int32
	enter := func(mock.Arguments) {
		n := atomic.AddInt32(&inFlight, 1)
		if n > atomic.LoadInt32(&peak) {
			atomic.StoreInt32(&peak, n)
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}
	mp.On("Show", mock.Anything, "listing-1").Run(enter).Return(shirt(), nil)
	mp.On("FetchCommission", mock.Anything).Run(enter).Return(domain.Commission{}, nil)
	mp.On("InitiateSpeculative", mock.Anything, mock.Anything, mock.Anything).Return(txResponse, nil)

	_, err := svc.Initiate(context.Background(), initiateRequest(true, domain.OrderData{Color: "black", StockReservationQuantity: 1}))

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
}

func TestInitiate_UpstreamErrorsPropagate(t *testing.T) {
	mp := new(MockMarketplace)
	svc := orderservice.NewService(mp, mp, mp, logger.NewNop())
	upstream := &apperror.MarketplaceError{Status: 402, StatusText: "Payment Required", Data: json.RawMessage(`{"errors":[]}`)}

	mp.On("Show", mock.Anything, "listing-1").Return(shirt(), nil)
	mp.On("FetchCommission", mock.Anything).Return(domain.Commission{}, nil)
	mp.On("Initiate", mock.Anything, mock.Anything, mock.Anything).Return(domain.APIResponse{}, upstream)

	res, err := svc.Initiate(context.Background(), initiateRequest(false, domain.OrderData{Color: "black", StockReservationQuantity: 1}))

	assert.Same(t, upstream, err)
	assert.Nil(t, res.Reservation)
}

func TestInitiate_ListingFetchError(t *testing.T) {
	mp := new(MockMarketplace)
	svc := orderservice.NewService(mp, mp, mp, logger.NewNop())
	mp.On("Show", mock.Anything, "listing-1").Return(domain.Listing{}, apperror.NewNotFoundError("Anúncio listing-1"))
	mp.On("FetchCommission", mock.Anything).Return(domain.Commission{}, nil)

	_, err := svc.Initiate(context.Background(), initiateRequest(false, domain.OrderData{Color: "black", StockReservationQuantity: 1}))

	assert.IsType(t, &apperror.NotFoundError{}, err)
}

func TestInitiate_RequiresListingID(t *testing.T) {
	mp := new(MockMarketplace)
	svc := orderservice.NewService(mp, mp, mp, logger.NewNop())

	_, err := svc.Initiate(context.Background(), domain.InitiateRequest{OrderData: domain.OrderData{Color: "black"}})

	assert.IsType(t, &apperror.ValidationError{}, err)
	assert.False(t, errors.Is(err, apperror.ErrAttributeRequired))
}

func TestMergeOrderData_ParamsTakePrecedence(t *testing.T) {
	order := domain.OrderData{Color: "black", Size: "m", StockReservationQuantity: 1}

	merged := orderservice.MergeOrderData(order, map[string]interface{}{
		"listingId":                "listing-1",
		"color":                    "white",
		"stockReservationQuantity": float64(3),
	})

	assert.Equal(t, domain.OrderData{Color: "white", Size: "m", StockReservationQuantity: 3}, merged)

	unchanged := orderservice.MergeOrderData(order, map[string]interface{}{"stockReservationQuantity": 2.5})
	assert.Equal(t, order, unchanged)
}
