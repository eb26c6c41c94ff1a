package domain

// Camada de domínio do rate limit por janela deslizante.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"errors"
	"time"
)

type Key string

// Policy é a configuração imutável do limite: até MaxRequests por Window.
//
// Definida no startup e nunca alterada em runtime. Configuração inválida é
// erro de programação/deploy e deve derrubar o processo no boot, nunca ser
// tratada por requisição.
type Policy struct {
	MaxRequests int
	Window      time.Duration
}

var (
	ErrMaxRequests = errors.New("policy: MaxRequests must be > 0")
	ErrWindow      = errors.New("policy: Window must be > 0")
)

func (p Policy) Validate() error {
	if p.MaxRequests <= 0 {
		return ErrMaxRequests
	}
	if p.Window <= 0 {
		return ErrWindow
	}
	return nil
}

// Decision é o resultado imutável de um Check/Peek.
//
// "Negado" é um resultado normal de decisão, não um erro.
type Decision struct {
	Allowed bool

	// RequestsMade conta os eventos não expirados no momento da decisão
	// (incluindo o evento recém-registrado quando admitido).
	RequestsMade int

	// RequestsRemaining nunca é negativo, mesmo sob corrida observável.
	RequestsRemaining int

	// ResetTime é quando o evento mais antigo ainda rastreado expira,
	// ou seja, quando a próxima vaga abre.
	ResetTime time.Time

	// RetryAfter é o tempo até ResetTime. Zero quando Allowed=true.
	RetryAfter time.Duration
}

// RetryAfterSeconds arredonda RetryAfter para cima em segundos inteiros,
// como esperado pelo header Retry-After. Quando negado é sempre >= 1.
func (d Decision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int((d.RetryAfter + time.Second - 1) / time.Second)
}

// WindowStore mantém o histórico de timestamps por chave (janela do cliente).
//
// Chave desconhecida é tratada como janela vazia: Purge vira no-op, Count
// retorna 0 e Oldest retorna ok=false. Record cria a janela se necessário e
// nunca falha (limitado apenas por memória).
//
// A expiração é preguiçosa: Purge remove todo timestamp t com
// t <= now-window (a borda exata conta como expirada) e só roda quando
// alguém acessa a chave. Não existe varredura de expiração em background.
type WindowStore interface {
	Purge(key Key, now time.Time, window time.Duration)
	Count(key Key) int
	Record(key Key, now time.Time)
	Oldest(key Key) (time.Time, bool)
}

// KeyLocker serializa seções críticas por chave.
//
// Contrato de concorrência do limiter: a sequência purge→count→record de uma
// mesma chave precisa se comportar como um passo indivisível (senão duas
// requisições concorrentes do mesmo cliente passam juntas pela checagem).
// Chaves diferentes não devem se bloquear.
type KeyLocker interface {
	Lock(key Key) (unlock func())
}

// Limiter representa algo que pode decidir se uma ação é permitida agora,
// sem telemetria de cota. Usado pelo guard global de flood (token bucket);
// a decisão por cliente fica com application.Service.
type Limiter interface {
	Allow() bool
}
