package domain

import "context"

// SlotPool é um recurso de capacidade finita (vagas de execução simultânea).
//
// Acquire bloqueia até abrir vaga ou o ctx encerrar; quando consegue, devolve
// a função de release, que deve ser chamada exatamente uma vez ao terminar.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
