package domain

import "encoding/json"

// ErrorResponse é a estrutura padronizada para respostas de erro na API.
// @Description Estrutura padronizada para respostas de erro na API.
type ErrorResponse struct {
	Status     int             `json:"status" example:"409"`
	Code       string          `json:"code" example:"variant-stock-not-enough"`
	Category   string          `json:"category" example:"VARIANT_ERROR"`
	Message    string          `json:"message" example:"Variant stock is not enough"`
	StatusText string          `json:"statusText,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}
