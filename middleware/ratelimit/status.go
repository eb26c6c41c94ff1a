package ratelimit

import (
	"net/http"
	"time"

	"admission-guard/middleware/ratelimit/application"
	"admission-guard/middleware/ratelimit/domain"
)

type StatusOptions struct {
	Service *application.Service

	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool

	Now func() time.Time
}

type statusBody struct {
	ClientKey string          `json:"client_key"`
	RateLimit statusRateLimit `json:"rate_limit"`
	Timestamp int64           `json:"timestamp"`
}

type statusRateLimit struct {
	MaxRequests       int   `json:"max_requests"`
	WindowSeconds     int   `json:"window_seconds"`
	Allowed           bool  `json:"allowed"`
	RequestsMade      int   `json:"requests_made"`
	RequestsRemaining int   `json:"requests_remaining"`
	ResetTime         int64 `json:"reset_time"`
	WindowResetsIn    int64 `json:"window_resets_in"`
}

// StatusHandler responde a consulta de cota do cliente usando Peek, que
// nunca consome cota: qualquer número de chamadas seguidas retorna o mesmo
// resultado e não muda o desfecho do próximo Check.
func StatusHandler(opts StatusOptions) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := opts.KeyFn(r)
		now := opts.Now()

		dec := opts.Service.Peek(domain.Key(key), now)

		resetsIn := int64(dec.ResetTime.Sub(now).Seconds())
		if resetsIn < 0 {
			resetsIn = 0
		}

		WriteJSON(w, http.StatusOK, statusBody{
			ClientKey: key,
			RateLimit: statusRateLimit{
				MaxRequests:       opts.Service.Policy.MaxRequests,
				WindowSeconds:     int(opts.Service.Policy.Window.Seconds()),
				Allowed:           dec.Allowed,
				RequestsMade:      dec.RequestsMade,
				RequestsRemaining: dec.RequestsRemaining,
				ResetTime:         dec.ResetTime.Unix(),
				WindowResetsIn:    resetsIn,
			},
			Timestamp: now.Unix(),
		})
	})
}
