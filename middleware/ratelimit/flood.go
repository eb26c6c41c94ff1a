package ratelimit

import (
	"net/http"
	"time"

	"admission-guard/middleware/ratelimit/domain"
)

type FloodOptions struct {
	// Guard é um limiter global (sem distinção de chave). Nil desliga o guard.
	Guard        domain.Limiter
	RejectStatus int
	RetryAfter   time.Duration
}

// FloodMiddleware rejeita cedo quando o processo inteiro está sob rajada,
// antes mesmo da decisão por cliente. Sem telemetria de cota: é só um
// corta-fogo.
func FloodMiddleware(opts FloodOptions) func(next http.Handler) http.Handler {
	if opts.Guard == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 1 * time.Second
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !opts.Guard.Allow() {
				w.Header().Set("Retry-After", formatInt(int(opts.RetryAfter.Seconds())))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
