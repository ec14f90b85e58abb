// Package response padroniza as respostas JSON dos handlers e middlewares.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
	"gostorefront/internal/pkg/logger"
)

// JSON escreve data com o status informado.
func JSON(w http.ResponseWriter, log logger.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("Falha ao codificar JSON de resposta", err)
	}
}

// Error traduz err para domain.ErrorResponse. Erros da API do marketplace mantêm o status,
// o statusText e o corpo originais.
func Error(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	status, category, code, message := apperror.MapToHTTPStatus(err)

	body := domain.ErrorResponse{
		Status:   status,
		Code:     code,
		Category: category,
		Message:  message,
	}

	var upstream *apperror.MarketplaceError
	if errors.As(err, &upstream) {
		body.StatusText = upstream.StatusText
		body.Data = upstream.Data
	}

	if status >= 500 {
		log.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	} else {
		log.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{
			"path": r.URL.Path,
			"code": code,
		})
	}

	JSON(w, log, status, body)
}
