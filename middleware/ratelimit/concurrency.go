package ratelimit

import (
	"net/http"
	"time"

	"admission-guard/middleware/ratelimit/application"
	"admission-guard/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// RetryAfter sugere ao cliente quando tentar de novo após negar vaga.
	RetryAfter time.Duration
}

// ConcurrencyMiddleware segura no máximo Max requisições simultâneas; o
// excedente espera uma vaga (até AcquireTimeout) e depois recebe 503.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 1 * time.Second
	}

	svc := application.NewSlotService(infra.NewChanPool(opts.Max), opts.AcquireTimeout)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				w.Header().Set("Retry-After", formatInt(int(opts.RetryAfter.Seconds())))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
