package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError é a interface central para todos os erros customizados da vitrine.
// Ela permite que o código externo (Handler) acesse a Categoria, o Código e a Mensagem do erro.
type AppError interface {
	Error() string    // Implementa a interface error padrão do Go
	Category() string // Categoria do erro (e.g., "VALIDATION_ERROR", "VARIANT_ERROR", "INTERNAL_ERROR")
	Code() string     // Código curto e estável para ramificação no cliente (e.g., "variant-not-found")
	HTTPStatus() int  // Código HTTP sugerido para o Handler
	Unwrap() error    // Permite encapsular erros subjacentes (original error)
}

// --- Erros de Variante (Resolver e validação de estoque) ---

// Códigos estáveis dos erros de variante.
const (
	CodeNoVariantsFound       = "no-variants-found"
	CodeVariantNotFound       = "variant-not-found"
	CodeVariantOutOfStock     = "variant-out-of-stock"
	CodeVariantStockNotEnough = "variant-stock-not-enough"
	CodeAttributeRequired     = "at-least-one-attribute-is-required"
	CodeValidation            = "validation-error"
	CodeNotFound              = "not-found"
	CodeConflict              = "conflict"
	CodeUnauthorized          = "unauthorized"
	CodeForbidden             = "forbidden"
	CodeInternal              = "internal-error"
	CodeMarketplace           = "marketplace-error"
	CodeRateLimited           = "rate-limited"
	categoryVariant           = "VARIANT_ERROR"
)

// VariantError representa uma falha na resolução de variante ou na validação de estoque.
type VariantError struct {
	code   string
	msg    string
	status int
}

func (e *VariantError) Error() string    { return e.msg }
func (e *VariantError) Category() string { return categoryVariant }
func (e *VariantError) Code() string     { return e.code }
func (e *VariantError) HTTPStatus() int  { return e.status }
func (e *VariantError) Unwrap() error    { return nil }

// Is compara pelo código, assim errors.Is funciona mesmo com erros encapsulados.
func (e *VariantError) Is(target error) bool {
	var t *VariantError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.code == e.code
}

// Erros de variante pré-definidos. São imutáveis e podem ser comparados com errors.Is.
var (
	ErrNoVariantsFound = &VariantError{
		code: CodeNoVariantsFound, msg: "No variants found", status: http.StatusNotFound,
	}
	ErrVariantNotFound = &VariantError{
		code: CodeVariantNotFound, msg: "Variant not found", status: http.StatusNotFound,
	}
	ErrVariantOutOfStock = &VariantError{
		code: CodeVariantOutOfStock, msg: "Variant out of stock", status: http.StatusConflict,
	}
	ErrVariantStockNotEnough = &VariantError{
		code: CodeVariantStockNotEnough, msg: "Variant stock is not enough", status: http.StatusConflict,
	}
	ErrAttributeRequired = &VariantError{
		code: CodeAttributeRequired, msg: "At least one attribute is required", status: http.StatusBadRequest,
	}
)

// --- Tipos de Erro Específicos (Erros de Domínio) ---

// ValidationError representa falhas de validação de dados de entrada.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string    { return fmt.Sprintf("Erro de Validação: %s", e.Msg) }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }
func (e *ValidationError) Code() string     { return CodeValidation }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest } // 400
func (e *ValidationError) Unwrap() error    { return nil }                   // Não encapsula erro subjacente

// NewValidationError cria um novo erro de validação.
func NewValidationError(msg string) AppError {
	return &ValidationError{Msg: msg}
}

// NotFoundError representa a ausência de um recurso solicitado.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("Recurso não encontrado: %s", e.Msg) }
func (e *NotFoundError) Category() string { return "NOT_FOUND" }
func (e *NotFoundError) Code() string     { return CodeNotFound }
func (e *NotFoundError) HTTPStatus() int  { return http.StatusNotFound } // 404
func (e *NotFoundError) Unwrap() error    { return nil }

// NewNotFoundError cria um novo erro de recurso não encontrado.
func NewNotFoundError(msg string) AppError {
	return &NotFoundError{Msg: msg}
}

// ConflictError representa um conflito na regra de negócio (e.g., OCC, versão desatualizada).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string    { return fmt.Sprintf("Conflito de estado: %s", e.Msg) }
func (e *ConflictError) Category() string { return "CONFLICT" }
func (e *ConflictError) Code() string     { return CodeConflict }
func (e *ConflictError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *ConflictError) Unwrap() error    { return nil }

// NewConflictError cria um novo erro de conflito (usado em OCC).
func NewConflictError(msg string) AppError {
	return &ConflictError{Msg: msg}
}

// IsConflict informa se algum erro na cadeia é um ConflictError.
func IsConflict(err error) bool {
	var conflictErr *ConflictError
	return stderrors.As(err, &conflictErr)
}

// UnauthorizedError representa credenciais ausentes ou inválidas.
type UnauthorizedError struct {
	Msg string
}

func (e *UnauthorizedError) Error() string    { return fmt.Sprintf("Não autorizado: %s", e.Msg) }
func (e *UnauthorizedError) Category() string { return "UNAUTHORIZED" }
func (e *UnauthorizedError) Code() string     { return CodeUnauthorized }
func (e *UnauthorizedError) HTTPStatus() int  { return http.StatusUnauthorized } // 401
func (e *UnauthorizedError) Unwrap() error    { return nil }

// NewUnauthorizedError cria um novo erro de autenticação.
func NewUnauthorizedError(msg string) AppError {
	return &UnauthorizedError{Msg: msg}
}

// ForbiddenError representa um usuário autenticado sem permissão sobre o recurso.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string    { return fmt.Sprintf("Acesso negado: %s", e.Msg) }
func (e *ForbiddenError) Category() string { return "FORBIDDEN" }
func (e *ForbiddenError) Code() string     { return CodeForbidden }
func (e *ForbiddenError) HTTPStatus() int  { return http.StatusForbidden } // 403
func (e *ForbiddenError) Unwrap() error    { return nil }

// NewForbiddenError cria um novo erro de permissão.
func NewForbiddenError(msg string) AppError {
	return &ForbiddenError{Msg: msg}
}

// --- Erros da API hospedada do marketplace ---

// MarketplaceError carrega a resposta de erro da API do marketplace para que o Handler
// possa repassar o status e o corpo originais ao cliente.
type MarketplaceError struct {
	Status     int
	StatusText string
	Data       json.RawMessage
}

func (e *MarketplaceError) Error() string {
	return fmt.Sprintf("Erro da API do marketplace: %d %s", e.Status, e.StatusText)
}
func (e *MarketplaceError) Category() string { return "MARKETPLACE_ERROR" }
func (e *MarketplaceError) Code() string     { return CodeMarketplace }
func (e *MarketplaceError) HTTPStatus() int {
	if e.Status < 400 {
		return http.StatusBadGateway
	}
	return e.Status
}
func (e *MarketplaceError) Unwrap() error { return nil }

// --- Tipos de Erro de Infraestrutura (Encapsulamento) ---

// InternalError representa falhas inesperadas no servidor, serviço ou repositório.
type InternalError struct {
	Msg string
	Err error // Erro original subjacente (e.g., erro do driver SQL)
}

func (e *InternalError) Error() string    { return fmt.Sprintf("Erro Interno: %s", e.Msg) }
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) Code() string     { return CodeInternal }
func (e *InternalError) HTTPStatus() int  { return http.StatusInternalServerError } // 500
func (e *InternalError) Unwrap() error    { return e.Err }

// NewInternalError cria um erro de servidor (para falhas de lógica ou código não esperado).
func NewInternalError(msg string, err error) AppError {
	return &InternalError{Msg: msg, Err: err}
}

// NewDBError é um atalho para criar um InternalError específico de falhas no DB.
func NewDBError(msg string, err error) AppError {
	return NewInternalError(fmt.Sprintf("%s (DB): %s", msg, err.Error()), err)
}

// --- Helper para o Handler (Tradução Final) ---

// MapToHTTPStatus recebe um erro e o traduz para o status HTTP, a categoria, o código e a mensagem.
// Erros encapsulados com %w também são reconhecidos.
func MapToHTTPStatus(err error) (status int, category, code, message string) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr.HTTPStatus(), appErr.Category(), appErr.Code(), appErr.Error()
	}

	// Erro não tipado (e.g., erro simples de pacote Go que não implementa AppError)
	// Tratar como erro interno genérico.
	return http.StatusInternalServerError, "UNKNOWN_ERROR", CodeInternal, "Ocorreu um erro inesperado."
}

// RateLimitError indica que o cliente excedeu o limite de requisições.
type RateLimitError struct {
	Msg string
}

func (e *RateLimitError) Error() string    { return fmt.Sprintf("Limite de requisições excedido: %s", e.Msg) }
func (e *RateLimitError) Category() string { return "RATE_LIMITED" }
func (e *RateLimitError) Code() string     { return CodeRateLimited }
func (e *RateLimitError) HTTPStatus() int  { return http.StatusTooManyRequests } // 429
func (e *RateLimitError) Unwrap() error    { return nil }

// NewRateLimitError cria um novo erro de limite de requisições.
func NewRateLimitError(msg string) AppError {
	return &RateLimitError{Msg: msg}
}
