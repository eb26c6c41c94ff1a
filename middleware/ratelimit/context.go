package ratelimit

import (
	"context"

	"admission-guard/middleware/ratelimit/domain"
)

type ctxKey struct{}

// WithDecision guarda a Decision no contexto da requisição. O Middleware faz
// isso em toda requisição admitida, para o handler poder embutir a cota na
// resposta sem consultar o limiter de novo.
func WithDecision(ctx context.Context, dec domain.Decision) context.Context {
	return context.WithValue(ctx, ctxKey{}, dec)
}

func DecisionFromContext(ctx context.Context) (domain.Decision, bool) {
	dec, ok := ctx.Value(ctxKey{}).(domain.Decision)
	return dec, ok
}
