package middleware

import (
	"context"
	"errors"
	"net/http"

	"gostorefront/internal/api/response"
	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
	"gostorefront/internal/marketplace"
	"gostorefront/internal/pkg/logger"
	"gostorefront/internal/pkg/token"
)

// ContextKey é o tipo das chaves de contexto deste pacote.
// Context Keys devem ser não-exportadas e de um tipo único.
type ContextKey int

const (
	userKey ContextKey = iota
	requestIDKey
)

// TokenInspector faz a pré-validação local do token (formato e expiração).
type TokenInspector interface {
	Inspect(tokenString string) (*token.Claims, error)
}

// UserResolver resolve o usuário dono do token na API do marketplace.
type UserResolver interface {
	CurrentUser(ctx context.Context, userToken string) (domain.User, error)
}

// NewAuthMiddleware valida o token Bearer, resolve o usuário na API do marketplace e anexa
// ao contexto o usuário e o token (repassado depois nas chamadas em nome do usuário).
func NewAuthMiddleware(inspector TokenInspector, users UserResolver, log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			// 1. Extrair o Token do Header Authorization: Bearer <token>
			tokenString, err := token.FromHeader(r.Header.Get("Authorization"))
			if err != nil {
				response.Error(w, r, log, apperror.NewUnauthorizedError("Token de autorização ausente ou malformado."))
				return
			}

			// 2. Pré-validação local: evita ida ao marketplace com token vencido
			if _, err := inspector.Inspect(tokenString); err != nil {
				msg := "Token inválido."
				if errors.Is(err, token.ErrExpired) {
					msg = "Token expirado."
				}
				response.Error(w, r, log, apperror.NewUnauthorizedError(msg))
				return
			}

			// 3. Quem decide é a API do marketplace
			user, err := users.CurrentUser(r.Context(), tokenString)
			if err != nil {
				response.Error(w, r, log, err)
				return
			}
			if user.ID == "" {
				response.Error(w, r, log, apperror.NewUnauthorizedError("Usuário não encontrado para o token."))
				return
			}

			ctx := marketplace.WithUserToken(r.Context(), tokenString)
			ctx = WithUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUser anexa o usuário autenticado ao contexto.
func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUserFromContext é uma função utilitária para extrair o usuário no handler.
func GetUserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userKey).(domain.User)
	return user, ok
}
