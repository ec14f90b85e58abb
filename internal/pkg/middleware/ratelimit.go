package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"gostorefront/internal/api/response"
	apperror "gostorefront/internal/errors"
	"gostorefront/internal/pkg/cache"
	"gostorefront/internal/pkg/logger"
)

// counterScript incrementa o contador e, na primeira requisição da janela, define a
// expiração (ARGV[1], em ms) no mesmo passo.
const counterScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count`

// RateLimiter limita as requisições por IP numa janela fixa, com contador no Redis.
func RateLimiter(client cache.Client, limit int, window time.Duration, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			key := "rate-limit:" + ip
			ctx := r.Context()

			res, err := client.Eval(ctx, counterScript, []string{key}, window.Milliseconds())
			if err != nil {
				response.Error(w, r, log, apperror.NewInternalError("Falha ao consultar limite de requisições.", err))
				return
			}
			count, ok := res.(int64)
			if !ok {
				response.Error(w, r, log, apperror.NewInternalError("Falha ao consultar limite de requisições.",
					fmt.Errorf("resposta inesperada do contador: %T", res)))
				return
			}

			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				response.Error(w, r, log, apperror.NewRateLimitError("tente novamente mais tarde."))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
