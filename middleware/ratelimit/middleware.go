package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"admission-guard/middleware/ratelimit/application"
	"admission-guard/middleware/ratelimit/domain"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	// Service decide allow/deny. Construir com application.NewService,
	// que valida a Policy no boot.
	Service *application.Service

	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	AddRateLimitHeaders bool

	// Now permite injetar relógio nos testes; padrão time.Now.
	Now func() time.Time
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Service == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := opts.KeyFn(r)
			now := opts.Now()

			dec := opts.Service.Check(domain.Key(key), now)
			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:               domain.Key(key),
					Allowed:           dec.Allowed,
					RequestsMade:      dec.RequestsMade,
					RequestsRemaining: dec.RequestsRemaining,
					RetryAfter:        dec.RetryAfter,
					Method:            r.Method,
					Path:              r.URL.Path,
					At:                now,
				})
			}

			if opts.AddRateLimitHeaders || !dec.Allowed {
				w.Header().Set("X-RateLimit-Limit", formatInt(opts.Service.Policy.MaxRequests))
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.RequestsRemaining))
				w.Header().Set("X-RateLimit-Reset", formatInt64(dec.ResetTime.Unix()))
			}
			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(dec.RetryAfterSeconds()))
				writeDenied(w, opts.RejectStatus, dec)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithDecision(r.Context(), dec)))
		})
	}
}
