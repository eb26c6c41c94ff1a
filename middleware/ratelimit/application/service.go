package application

import (
	"errors"
	"time"

	"admission-guard/middleware/ratelimit/domain"
)

// Service concentra a regra de admissão por janela deslizante.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma Decision.
// O relógio (now) vem sempre do chamador: o serviço nunca lê time.Now, o que
// deixa a decisão determinística e testável sem esperar tempo real passar.
type Service struct {
	Windows domain.WindowStore
	Locks   domain.KeyLocker
	Policy  domain.Policy
}

var ErrNilWindowStore = errors.New("service: WindowStore is required")

// NewService valida a política no boot (fail-fast) e monta o serviço.
func NewService(windows domain.WindowStore, locks domain.KeyLocker, policy domain.Policy) (*Service, error) {
	if windows == nil {
		return nil, ErrNilWindowStore
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Service{Windows: windows, Locks: locks, Policy: policy}, nil
}

// Check decide se uma requisição da chave pode prosseguir agora, consumindo
// uma unidade de cota quando há vaga.
//
// A sequência purge→count→(record) roda inteira sob o lock da chave: duas
// requisições concorrentes do mesmo cliente nunca enxergam a mesma contagem.
func (s *Service) Check(key domain.Key, now time.Time) domain.Decision {
	unlock := s.lock(key)
	defer unlock()

	s.Windows.Purge(key, now, s.Policy.Window)
	current := s.Windows.Count(key)

	if current < s.Policy.MaxRequests {
		s.Windows.Record(key, now)
		return s.decision(key, now, true, current+1)
	}
	return s.decision(key, now, false, current)
}

// Peek é idêntico ao Check mas nunca registra evento, mesmo havendo vaga.
// Serve para consultas de status que não devem consumir cota.
// Allowed reporta o que aconteceria numa tentativa real agora.
func (s *Service) Peek(key domain.Key, now time.Time) domain.Decision {
	unlock := s.lock(key)
	defer unlock()

	s.Windows.Purge(key, now, s.Policy.Window)
	current := s.Windows.Count(key)

	return s.decision(key, now, current < s.Policy.MaxRequests, current)
}

func (s *Service) lock(key domain.Key) func() {
	if s.Locks == nil {
		return func() {}
	}
	return s.Locks.Lock(key)
}

// decision monta o snapshot de cota. Chamar com o lock da chave em mãos.
func (s *Service) decision(key domain.Key, now time.Time, allowed bool, made int) domain.Decision {
	d := domain.Decision{
		Allowed:           allowed,
		RequestsMade:      made,
		RequestsRemaining: s.Policy.MaxRequests - made,
	}
	if d.RequestsRemaining < 0 {
		d.RequestsRemaining = 0
	}

	if oldest, ok := s.Windows.Oldest(key); ok {
		d.ResetTime = oldest.Add(s.Policy.Window)
	} else {
		// janela vazia: a "próxima vaga" é relativa a agora
		d.ResetTime = now.Add(s.Policy.Window)
	}

	if !allowed {
		// negado implica janela cheia, logo Oldest existe e ainda não expirou;
		// o resultado é sempre > 0.
		d.RetryAfter = d.ResetTime.Sub(now)
	}
	return d
}
