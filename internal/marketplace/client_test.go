package marketplace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
	"gostorefront/internal/pkg/cache"
	"gostorefront/internal/pkg/logger"
)

const listingJSON = `{
  "data": {
    "id": {"uuid": "listing-1"},
    "type": "listing",
    "attributes": {
      "title": "Camiseta",
      "price": {"amount": 2500, "currency": "BRL"},
      "publicData": {
        "category": "roupas",
        "variants": [
          {"id": "A", "attributes": {"color": "black"}, "stock": 10},
          {"id": "B", "attributes": {"color": "white"}, "stock": 5}
        ]
      }
    },
    "relationships": {"author": {"data": {"id": {"uuid": "author-1"}, "type": "user"}}}
  }
}`

type fakeAPI struct {
	t          *testing.T
	tokenCalls int32
	mux        *http.ServeMux
	lastBody   map[string]interface{}
	lastRaw    []byte
	lastQuery  string
	lastAuth   string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{t: t, mux: http.NewServeMux()}
	f.mux.HandleFunc("POST /v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		assert.NoError(t, r.ParseForm())
		switch r.Form.Get("grant_type") {
		case "client_credentials":
			assert.Equal(t, "integ", r.Form.Get("scope"))
			_, _ = io.WriteString(w, `{"access_token":"integ-token","expires_in":3600}`)
		case "token_exchange":
			assert.Equal(t, "user-token", r.Form.Get("subject_token"))
			_, _ = io.WriteString(w, `{"access_token":"trusted-token","expires_in":3600}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	return f
}

func (f *fakeAPI) record(r *http.Request) {
	f.lastQuery = r.URL.RawQuery
	f.lastAuth = r.Header.Get("Authorization")
	f.lastBody = nil
	f.lastRaw = nil
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		f.lastRaw = raw
		if len(raw) > 0 {
			assert.NoError(f.t, json.Unmarshal(raw, &f.lastBody))
		}
	}
}

func (f *fakeAPI) client(t *testing.T) *Client {
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:                 srv.URL,
		AssetsURL:               srv.URL + "/assets",
		ClientID:                "client-id",
		ClientSecret:            "secret",
		IntegrationClientID:     "integ-id",
		IntegrationClientSecret: "integ-secret",
		Timeout:                 2 * time.Second,
	}, nil, logger.NewNop())
}

func TestShow_DecodesListing(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /v1/integration_api/listings/show", func(w http.ResponseWriter, r *http.Request) {
		api.record(r)
		_, _ = io.WriteString(w, listingJSON)
	})
	c := api.client(t)

	l, err := c.Show(context.Background(), "listing-1")

	require.NoError(t, err)
	assert.Equal(t, "listing-1", l.ID)
	assert.Equal(t, "author-1", l.AuthorID)
	assert.Equal(t, int64(2500), l.Price.Amount)
	require.Len(t, l.Variants(), 2)
	assert.Equal(t, "B", l.Variants()[1].ID)
	assert.Contains(t, l.PublicData.Extra, "category")
	assert.Equal(t, "Bearer integ-token", api.lastAuth)
	assert.Contains(t, api.lastQuery, "id=listing-1")

	// O token de integração é reaproveitado.
	_, err = c.Show(context.Background(), "listing-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.tokenCalls))
}

func TestShow_NotFound(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /v1/integration_api/listings/show", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"errors":[{"status":404,"code":"not-found"}]}`)
	})

	_, err := api.client(t).Show(context.Background(), "nope")

	assert.IsType(t, &apperror.NotFoundError{}, err)
}

func TestUpdateVariants_ScopedToVariantsField(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /v1/integration_api/listings/update", func(w http.ResponseWriter, r *http.Request) {
		api.record(r)
		_, _ = io.WriteString(w, listingJSON)
	})
	c := api.client(t)

	_, err := c.UpdateVariants(context.Background(), "listing-1", 0, []domain.Variant{
		{ID: "A", Attributes: domain.Attributes{Color: "black"}, Stock: 10},
		{ID: "B", Attributes: domain.Attributes{Color: "white"}, Stock: 3},
	})

	require.NoError(t, err)
	assert.Equal(t, "listing-1", api.lastBody["id"])
	publicData := api.lastBody["publicData"].(map[string]interface{})
	assert.Len(t, publicData, 1, "apenas publicData.variants deve ser enviado")
	variants := publicData["variants"].([]interface{})
	assert.EqualValues(t, 3, variants[1].(map[string]interface{})["stock"])
}

func TestUpdatePublicData_MarketplaceErrorKeepsUpstreamBody(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /v1/integration_api/listings/update", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"errors":[{"code":"listing-closed"}]}`)
	})

	_, err := api.client(t).UpdatePublicData(context.Background(), "listing-1", map[string]interface{}{"shopName": "Loja"})

	var mErr *apperror.MarketplaceError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, http.StatusConflict, mErr.Status)
	assert.JSONEq(t, `{"errors":[{"code":"listing-closed"}]}`, string(mErr.Data))
}

func TestQueryByAuthor_Paginates(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /v1/integration_api/listings/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "author-1", r.URL.Query().Get("authorId"))
		page := r.URL.Query().Get("page")
		_, _ = io.WriteString(w, `{"data":[{"id":"l-`+page+`","type":"listing","attributes":{"publicData":{}}}],"meta":{"page":`+page+`,"totalPages":2}}`)
	})

	listings, err := api.client(t).QueryByAuthor(context.Background(), "author-1")

	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "l-1", listings[0].ID)
	assert.Equal(t, "l-2", listings[1].ID)
	assert.Equal(t, "author-1", listings[1].AuthorID)
}

func TestInitiate_UsesTrustedTokenAndForwardsQuery(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /v1/api/transactions/initiate", func(w http.ResponseWriter, r *http.Request) {
		api.record(r)
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"data":{"id":{"uuid":"tx-1"},"type":"transaction"}}`)
	})
	c := api.client(t)

	ctx := WithUserToken(context.Background(), "user-token")
	quantity := decimal.NewFromInt(2)
	percentage := decimal.NewFromInt(-10)
	res, err := c.Initiate(ctx, domain.BodyParams{
		ProcessAlias: "default-purchase/release-1",
		Transition:   "transition/request-payment",
		Params: map[string]interface{}{
			"listingId": "listing-1",
			"lineItems": []domain.LineItem{
				{Code: domain.LineItemCodeItem, UnitPrice: domain.Money{Amount: 2500, Currency: "BRL"}, Quantity: &quantity,
					IncludeFor: []string{domain.IncludeForCustomer, domain.IncludeForProvider}},
				{Code: domain.LineItemCodeProviderCommission, UnitPrice: domain.Money{Amount: 5000, Currency: "BRL"}, Percentage: &percentage,
					IncludeFor: []string{domain.IncludeForProvider}},
			},
		},
	}, map[string]interface{}{"expand": true, "include": []interface{}{"listing", "provider"}})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "tx-1", res.TransactionID())
	assert.Equal(t, "Bearer trusted-token", api.lastAuth)
	assert.Contains(t, api.lastQuery, "expand=true")
	assert.Contains(t, api.lastQuery, "include=listing%2Cprovider")
	assert.Equal(t, "transition/request-payment", api.lastBody["transition"])

	var wire struct {
		Params struct {
			LineItems json.RawMessage `json:"lineItems"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal(api.lastRaw, &wire))
	assert.JSONEq(t, `[
		{"code":"line-item/item","unitPrice":{"amount":2500,"currency":"BRL"},"quantity":2,"includeFor":["customer","provider"]},
		{"code":"line-item/provider-commission","unitPrice":{"amount":5000,"currency":"BRL"},"percentage":-10,"includeFor":["provider"]}
	]`, string(wire.Params.LineItems))
}

func TestInitiate_RequiresUserToken(t *testing.T) {
	api := newFakeAPI(t)

	_, err := api.client(t).InitiateSpeculative(context.Background(), domain.BodyParams{}, nil)

	assert.IsType(t, &apperror.UnauthorizedError{}, err)
}

func TestFetchCommission(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /assets/pub/client-id/a/latest/transactions/commission.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"type":"jsonAsset","attributes":{"data":{"providerCommission":{"percentage":10},"customerCommission":{"percentage":5}}}}}`)
	})

	commission, err := api.client(t).FetchCommission(context.Background())

	require.NoError(t, err)
	require.NotNil(t, commission.ProviderCommission)
	assert.True(t, decimal.NewFromInt(10).Equal(commission.ProviderCommission.Percentage))
	assert.True(t, decimal.NewFromInt(5).Equal(commission.CustomerCommission.Percentage))
}

func TestFetchCommission_MissingAsset(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /assets/pub/client-id/a/latest/transactions/commission.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	commission, err := api.client(t).FetchCommission(context.Background())

	require.NoError(t, err)
	assert.Nil(t, commission.ProviderCommission)
	assert.Nil(t, commission.CustomerCommission)
}

func TestCurrentUser(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /v1/api/current_user/show", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer user-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"id":{"uuid":"user-1"},"attributes":{"profile":{"displayName":"Loja da Ana"}}}}`)
	})
	c := api.client(t)

	user, err := c.CurrentUser(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, domain.User{ID: "user-1", DisplayName: "Loja da Ana"}, user)

	_, err = c.CurrentUser(context.Background(), "outro")
	assert.IsType(t, &apperror.UnauthorizedError{}, err)
}

// MockCache é um mock do cache.Client usado no Cache-Aside de comissões.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *MockCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, expiration)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	res := m.Called(ctx, script, keys, args)
	return res.Get(0), res.Error(1)
}

type stubSource struct {
	calls int
	value domain.Commission
}

func (s *stubSource) FetchCommission(context.Context) (domain.Commission, error) {
	s.calls++
	return s.value, nil
}

func TestCachedCommission_MissThenHit(t *testing.T) {
	mc := new(MockCache)
	src := &stubSource{value: domain.Commission{ProviderCommission: &domain.CommissionRate{Percentage: decimal.NewFromInt(12)}}}
	cached := NewCachedCommission(src, mc, time.Minute, logger.NewNop())

	mc.On("Get", mock.Anything, commissionCacheKey).Return("", cache.ErrCacheMiss).Once()
	mc.On("Set", mock.Anything, commissionCacheKey, mock.Anything, time.Minute).Return(nil).Once()

	first, err := cached.FetchCommission(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(12).Equal(first.ProviderCommission.Percentage))

	payload, _ := json.Marshal(src.value)
	mc.On("Get", mock.Anything, commissionCacheKey).Return(string(payload), nil).Once()

	second, err := cached.FetchCommission(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(12).Equal(second.ProviderCommission.Percentage))

	assert.Equal(t, 1, src.calls)
	mc.AssertExpectations(t)
}
