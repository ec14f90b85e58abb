package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gostorefront/internal/api/response"
	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
	"gostorefront/internal/pkg/logger"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) domain.ErrorResponse {
	t.Helper()
	var body domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestError_VariantErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.ErrNoVariantsFound, http.StatusNotFound, "no-variants-found"},
		{apperror.ErrVariantNotFound, http.StatusNotFound, "variant-not-found"},
		{apperror.ErrVariantOutOfStock, http.StatusConflict, "variant-out-of-stock"},
		{apperror.ErrVariantStockNotEnough, http.StatusConflict, "variant-stock-not-enough"},
		{apperror.ErrAttributeRequired, http.StatusBadRequest, "at-least-one-attribute-is-required"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/initiate-privileged", nil)

			response.Error(rec, req, logger.NewNop(), fmt.Errorf("iniciação: %w", tt.err))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decode(t, rec)
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, "VARIANT_ERROR", body.Category)
		})
	}
}

func TestError_MarketplacePassthrough(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/initiate-privileged", nil)
	upstream := &apperror.MarketplaceError{
		Status:     402,
		StatusText: "Payment Required",
		Data:       json.RawMessage(`{"errors":[{"code":"transaction-payment-failed"}]}`),
	}

	response.Error(rec, req, logger.NewNop(), upstream)

	assert.Equal(t, 402, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "marketplace-error", body.Code)
	assert.Equal(t, "Payment Required", body.StatusText)
	assert.JSONEq(t, `{"errors":[{"code":"transaction-payment-failed"}]}`, string(body.Data))
}

func TestError_UntypedIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	response.Error(rec, req, logger.NewNop(), errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal-error", decode(t, rec).Code)
}
