package order

import (
	"context"
	"encoding/json"
	"net/http"

	"gostorefront/internal/api/response"
	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
	"gostorefront/internal/pkg/logger"
	"gostorefront/internal/service/orderservice"
)

// OrderService define o contrato que o Handler espera da camada de Serviço.
type OrderService interface {
	Initiate(ctx context.Context, req domain.InitiateRequest) (orderservice.Result, error)
}

// ReservationScheduler agenda a reserva de estoque fora do caminho da requisição.
type ReservationScheduler interface {
	Schedule(ctx context.Context, req domain.ReservationRequest) bool
}

// Handler agrupa os Handlers de pedido.
type Handler struct {
	Service   OrderService
	Scheduler ReservationScheduler
	Logger    logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service, o agendador e o Logger.
func NewHandler(svc OrderService, scheduler ReservationScheduler, log logger.Logger) *Handler {
	return &Handler{
		Service:   svc,
		Scheduler: scheduler,
		Logger:    log,
	}
}

// InitiatePrivilegedHandler lida com a requisição POST /api/initiate-privileged.
//
// @Summary      Inicia uma transação com line items calculados no servidor
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request  body      domain.InitiateRequest  true  "Pedido"
// @Success      200      {object}  domain.APIResponse
// @Failure      400,404,409  {object}  domain.ErrorResponse
// @Router       /api/initiate-privileged [post]
func (h *Handler) InitiatePrivilegedHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, h.Logger, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."))
		return
	}

	res, err := h.Service.Initiate(r.Context(), req)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	status := res.Response.Status
	if status == 0 {
		status = http.StatusOK
	}
	response.JSON(w, h.Logger, status, res.Response)

	// A reserva só começa depois que a resposta foi escrita e nunca altera o que o cliente recebeu.
	if res.Reservation != nil {
		h.Scheduler.Schedule(r.Context(), *res.Reservation)
	}
}
