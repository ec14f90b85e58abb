package listing

import (
	"context"
	"encoding/json"
	"net/http"

	"gostorefront/internal/api/response"
	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
	"gostorefront/internal/pkg/logger"
	"gostorefront/internal/pkg/middleware"
)

// ListingService define o contrato que o Handler espera da camada de Serviço.
type ListingService interface {
	ReplaceVariants(ctx context.Context, userID, listingID string, variants []domain.Variant) (domain.Listing, error)
	SyncShopName(ctx context.Context, user domain.User) (int, error)
}

// Handler agrupa os Handlers de anúncio.
type Handler struct {
	Service ListingService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc ListingService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

type variantsRequest struct {
	Variants []domain.Variant `json:"variants"`
}

// ReplaceVariantsHandler lida com a requisição PUT /v1/listings/{id}/variants.
//
// @Summary      Substitui o catálogo de variantes do anúncio
// @Tags         listings
// @Accept       json
// @Produce      json
// @Param        id       path      string           true  "ID do anúncio"
// @Param        request  body      variantsRequest  true  "Variantes"
// @Success      200      {object}  domain.Listing
// @Failure      400,401,403,404  {object}  domain.ErrorResponse
// @Router       /v1/listings/{id}/variants [put]
func (h *Handler) ReplaceVariantsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		response.Error(w, r, h.Logger, apperror.NewUnauthorizedError("Autorização necessária."))
		return
	}

	var req variantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, h.Logger, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."))
		return
	}

	updated, err := h.Service.ReplaceVariants(r.Context(), user.ID, r.PathValue("id"), req.Variants)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	response.JSON(w, h.Logger, http.StatusOK, updated)
}

// UpdateShopNameHandler lida com a requisição POST /api/update-shop-name-listings.
//
// @Summary      Copia o nome de exibição do usuário para os anúncios dele
// @Tags         listings
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  domain.ErrorResponse
// @Router       /api/update-shop-name-listings [post]
func (h *Handler) UpdateShopNameHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		response.Error(w, r, h.Logger, apperror.NewUnauthorizedError("Autorização necessária."))
		return
	}

	updated, err := h.Service.SyncShopName(r.Context(), user)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	response.JSON(w, h.Logger, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"success": true, "updated": updated},
	})
}
