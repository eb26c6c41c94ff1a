package infra

import (
	"context"

	"admission-guard/middleware/ratelimit/domain"
)

// slotChan implementa domain.SlotPool com um channel com buffer: cada vaga
// ocupada é um struct{} dentro do buffer. Sem contador nem mutex próprios;
// a fila de espera fica por conta do runtime.
type slotChan struct {
	slots chan struct{}
}

// NewChanPool cria um pool com `max` vagas simultâneas.
func NewChanPool(max int) domain.SlotPool {
	return &slotChan{slots: make(chan struct{}, max)}
}

func (p *slotChan) Acquire(ctx context.Context) (func(), bool) {
	// caminho rápido: vaga livre, sem bloquear
	select {
	case p.slots <- struct{}{}:
		return p.release, true
	default:
	}

	select {
	case p.slots <- struct{}{}:
		return p.release, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *slotChan) release() { <-p.slots }
