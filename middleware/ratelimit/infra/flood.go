package infra

import (
	"admission-guard/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// FloodGuard é um token bucket global (processo inteiro, sem distinção de
// chave) usando golang.org/x/time/rate. Serve como proteção de flood na
// frente da decisão por cliente, que é quem carrega a telemetria de cota.
type FloodGuard struct {
	lim *rate.Limiter
}

func NewFloodGuard(rps float64, burst int) *FloodGuard {
	return &FloodGuard{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow implementa domain.Limiter.
func (g *FloodGuard) Allow() bool { return g.lim.Allow() }

var _ domain.Limiter = (*FloodGuard)(nil)
