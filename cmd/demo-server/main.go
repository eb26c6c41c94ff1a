package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"admission-guard/internal/logging"
	"admission-guard/middleware/ratelimit"
	"admission-guard/middleware/ratelimit/application"
	"admission-guard/middleware/ratelimit/domain"
	"admission-guard/middleware/ratelimit/infra"

	"github.com/joho/godotenv"
)

// Servidor de demonstração do guard de admissão, sem proxy:
//
//   - GET /           índice, sem limite (bom para checar se o processo vive)
//   - GET /protected  endpoint protegido (padrão: 5 requisições por 60s, por IP)
//   - GET /status     consulta de cota via Peek, não consome requisição
func main() {
	_ = godotenv.Load()

	log := logging.New(getenvDefault("LOG_LEVEL", "info"), getenvBoolDefault("LOG_PRETTY", true))

	maxRequests := getenvIntDefault("RATE_MAX_REQUESTS", 5)
	window := getenvDurationDefault("RATE_WINDOW", 60*time.Second)

	windows := infra.NewWindowLog()
	svc, err := application.NewService(windows, infra.NewKeyMutex(0), domain.Policy{
		MaxRequests: maxRequests,
		Window:      window,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rate limit policy")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	windows.StartJanitor(ctx)

	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))

	trustXFF := getenvBoolDefault("TRUST_XFF", false)
	keyFn := ratelimit.DefaultKeyFunc("", trustXFF)

	limited := ratelimit.Middleware(ratelimit.Options{
		Service:             svc,
		Stats:               stats,
		KeyFn:               keyFn,
		AddRateLimitHeaders: true,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ratelimit.WriteJSON(w, http.StatusOK, map[string]any{
			"message": "Admission guard demo is running!",
			"endpoints": map[string]string{
				"/protected": "Rate limited endpoint",
				"/status":    "Check your current rate limit status",
			},
		})
	})
	mux.Handle("/protected", limited(protectedHandler(keyFn)))
	mux.Handle("/status", ratelimit.StatusHandler(ratelimit.StatusOptions{
		Service: svc,
		KeyFn:   keyFn,
	}))

	srv := &http.Server{
		Addr:              getenvDefault("LISTEN_ADDR", ":8081"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("listen", srv.Addr).Int("max_requests", maxRequests).Dur("window", window).Msg("demo server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}

func protectedHandler(keyFn ratelimit.KeyFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()

		body := map[string]any{
			"message":   "Success! You accessed the protected endpoint.",
			"client_ip": keyFn(r),
			"timestamp": now.Unix(),
			"data": map[string]string{
				"secret_message": "This endpoint is protected by rate limiting!",
				"request_id":     "req_" + strconv.FormatInt(now.UnixMilli(), 10),
			},
		}
		if dec, ok := ratelimit.DecisionFromContext(r.Context()); ok {
			body["rate_limit_info"] = ratelimit.NewRateLimitInfo(dec)
		}
		ratelimit.WriteJSON(w, http.StatusOK, body)
	})
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
