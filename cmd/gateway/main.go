package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"admission-guard/internal/logging"
	"admission-guard/middleware/ratelimit"
	"admission-guard/middleware/ratelimit/application"
	"admission-guard/middleware/ratelimit/domain"
	"admission-guard/middleware/ratelimit/infra"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// .env local, se existir; em produção as vars vêm do ambiente
	_ = godotenv.Load()

	cfg, err := readConfig()
	log := logging.New(cfg.logLevel, cfg.logPretty)
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid UPSTREAM_URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("proxy error")
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	windows := infra.NewWindowLog(
		infra.WithIdleTTL(cfg.windowIdleTTL),
		infra.WithCleanupEvery(cfg.windowCleanupEvery),
	)

	svc, err := application.NewService(windows, infra.NewKeyMutex(0), domain.Policy{
		MaxRequests: cfg.rateMaxRequests,
		Window:      cfg.rateWindow,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rate limit policy")
	}

	var statsStore domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("redis stats ping error")
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	windows.StartJanitor(ctx)

	h := http.Handler(proxy)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	if cfg.rateEnabled {
		h = ratelimit.Middleware(ratelimit.Options{
			Service:             svc,
			Stats:               statsStore,
			KeyHeader:           cfg.rateKeyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			AddRateLimitHeaders: cfg.addHeaders,
		})(h)
	}
	if cfg.floodRPS > 0 {
		h = ratelimit.FloodMiddleware(ratelimit.FloodOptions{
			Guard: infra.NewFloodGuard(cfg.floodRPS, cfg.floodBurst),
		})(h)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.statusPath, ratelimit.StatusHandler(ratelimit.StatusOptions{
		Service:            svc,
		KeyHeader:          cfg.rateKeyHeader,
		TrustXForwardedFor: cfg.trustXFF,
	}))
	mux.Handle("/", h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("listen", cfg.listenAddr).Str("upstream", target.String()).Msg("gateway listening")
	log.Info().
		Bool("enabled", cfg.rateEnabled).
		Int("max_requests", cfg.rateMaxRequests).
		Dur("window", cfg.rateWindow).
		Str("key_header", cfg.rateKeyHeader).
		Bool("trust_xff", cfg.trustXFF).
		Msg("rate")
	log.Info().
		Bool("enabled", cfg.rateStatsEnabled).
		Str("redis_addr", cfg.rateStatsRedisAddr).
		Str("bucket", cfg.rateStatsBucket).
		Dur("ttl", cfg.rateStatsTTL).
		Bool("track_keys", cfg.rateStatsTrackKeys).
		Msg("rate-stats")
	log.Info().
		Float64("flood_rps", cfg.floodRPS).
		Int("flood_burst", cfg.floodBurst).
		Int("concurrency_max", cfg.concurrencyMax).
		Dur("concurrency_timeout", cfg.concurrencyTimeout).
		Msg("guards")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}

type config struct {
	listenAddr  string
	upstreamURL string
	statusPath  string

	rateEnabled     bool
	rateMaxRequests int
	rateWindow      time.Duration
	rateKeyHeader   string
	trustXFF        bool
	addHeaders      bool

	windowIdleTTL      time.Duration
	windowCleanupEvery time.Duration

	floodRPS   float64
	floodBurst int

	concurrencyMax     int
	concurrencyTimeout time.Duration

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool

	logLevel  string
	logPretty bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.statusPath = getenvDefault("STATUS_PATH", "/status")

	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.rateMaxRequests = getenvIntDefault("RATE_MAX_REQUESTS", 5)
	cfg.rateWindow = getenvDurationDefault("RATE_WINDOW", 60*time.Second)
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", true)

	cfg.windowIdleTTL = getenvDurationDefault("WINDOW_IDLE_TTL", 15*time.Minute)
	cfg.windowCleanupEvery = getenvDurationDefault("WINDOW_CLEANUP_EVERY", 2*time.Minute)

	// FLOOD_RPS=0 desliga o corta-fogo global
	cfg.floodRPS = getenvFloatDefault("FLOOD_RPS", 0)
	cfg.floodBurst = getenvIntDefault("FLOOD_BURST", 100)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.rateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "admission:stats")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.logPretty = getenvBoolDefault("LOG_PRETTY", false)

	if cfg.upstreamURL == "" {
		return cfg, errors.New("UPSTREAM_URL is required")
	}
	if cfg.rateMaxRequests <= 0 {
		return cfg, errors.New("RATE_MAX_REQUESTS must be > 0")
	}
	if cfg.rateWindow <= 0 {
		return cfg, errors.New("RATE_WINDOW must be > 0")
	}
	if cfg.floodRPS < 0 {
		return cfg, errors.New("FLOOD_RPS must be >= 0")
	}
	if cfg.floodRPS > 0 && cfg.floodBurst <= 0 {
		return cfg, errors.New("FLOOD_BURST must be > 0 when FLOOD_RPS is set")
	}
	if cfg.concurrencyMax < 0 {
		return cfg, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
		return cfg, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	return cfg, nil
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

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
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
