package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Erros da pré-validação do token.
var (
	ErrMissingToken = errors.New("token de autorização ausente ou malformado")
	ErrMalformed    = errors.New("token malformado")
	ErrExpired      = errors.New("token expirado")
)

// Claims são as informações lidas do token de acesso do marketplace.
type Claims struct {
	Subject   string
	Scope     string
	ExpiresAt time.Time
}

// Inspector faz uma pré-validação local do token de acesso emitido pelo marketplace:
// formato JWT e expiração. A assinatura não é verificada aqui; quem a confirma é a
// própria API hospedada (CurrentUser), evitando uma chamada remota para tokens
// claramente inválidos.
type Inspector struct {
	parser *jwt.Parser
	leeway time.Duration
	now    func() time.Time
}

// NewInspector cria o Inspector com a tolerância de relógio informada.
func NewInspector(leeway time.Duration) *Inspector {
	return &Inspector{
		parser: jwt.NewParser(),
		leeway: leeway,
		now:    time.Now,
	}
}

// FromHeader extrai o token do header Authorization: Bearer <token>.
func FromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrMissingToken
	}
	tok := strings.TrimSpace(header[len(prefix):])
	if tok == "" {
		return "", ErrMissingToken
	}
	return tok, nil
}

// Inspect lê as claims sem verificar a assinatura e rejeita tokens expirados.
func (i *Inspector) Inspect(tokenString string) (*Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := i.parser.ParseUnverified(tokenString, mc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims := &Claims{}
	claims.Subject, _ = mc.GetSubject()
	claims.Scope, _ = mc["scope"].(string)

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if exp != nil {
		claims.ExpiresAt = exp.Time
		if i.now().After(exp.Time.Add(i.leeway)) {
			return nil, ErrExpired
		}
	}
	return claims, nil
}
