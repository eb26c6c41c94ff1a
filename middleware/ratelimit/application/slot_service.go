package application

import (
	"context"
	"time"

	"admission-guard/middleware/ratelimit/domain"
)

// SlotService limita quantas requisições rodam ao mesmo tempo: adquire uma
// vaga no pool antes de seguir e devolve ao terminar. Não conhece HTTP.
type SlotService struct {
	pool    domain.SlotPool
	timeout time.Duration
}

// NewSlotService monta o serviço. Pool nil desliga o limite (Acquire sempre
// ok). timeout <= 0 espera até o ctx do chamador encerrar.
func NewSlotService(pool domain.SlotPool, timeout time.Duration) SlotService {
	return SlotService{pool: pool, timeout: timeout}
}

// Acquire retorna (release, ok). Com ok=false nenhuma vaga foi tomada e
// release não deve ser chamado.
func (s SlotService) Acquire(ctx context.Context) (func(), bool) {
	if s.pool == nil {
		return func() {}, true
	}

	if s.timeout <= 0 {
		return s.pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.pool.Acquire(acqCtx)
}
