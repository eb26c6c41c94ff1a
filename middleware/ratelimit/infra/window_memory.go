package infra

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"admission-guard/middleware/ratelimit/domain"
)

const windowLogShards = 64

// WindowLog é a implementação em memória de domain.WindowStore: um histórico
// ordenado de timestamps por chave, particionado em shards para que clientes
// diferentes não disputem o mesmo mutex.
//
// A expiração é sempre preguiçosa (Purge na hora do acesso). O janitor só
// remove janelas inteiras ociosas há mais que idleTTL, para conter memória
// com muitas chaves distintas; a correção da cota nunca depende dele.
type WindowLog struct {
	shards  [windowLogShards]windowShard
	idleTTL time.Duration

	cleanupEvery time.Duration

	// maior janela já vista em Purge; o Cleanup nunca usa TTL menor que
	// isso, então nenhum evento ainda válido é descartado pelo janitor,
	// independente do idleTTL configurado.
	maxWindow atomic.Int64
}

type windowShard struct {
	mu      sync.Mutex
	windows map[string]*clientWindow
}

type clientWindow struct {
	// events é não-decrescente por construção: Record só anexa "now".
	events   []time.Time
	lastSeen time.Time
}

type WindowLogOption func(*WindowLog)

// WithIdleTTL define por quanto tempo uma janela sem atividade sobrevive ao
// janitor. Valores menores que a janela da política não são perigosos: o
// Cleanup sempre respeita a maior janela já vista como piso.
func WithIdleTTL(d time.Duration) WindowLogOption {
	return func(s *WindowLog) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) WindowLogOption {
	return func(s *WindowLog) { s.cleanupEvery = d }
}

func NewWindowLog(opts ...WindowLogOption) *WindowLog {
	s := &WindowLog{
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for i := range s.shards {
		s.shards[i].windows = make(map[string]*clientWindow)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WindowLog) IdleTTL() time.Duration      { return s.idleTTL }
func (s *WindowLog) CleanupEvery() time.Duration { return s.cleanupEvery }

func (s *WindowLog) shard(key domain.Key) *windowShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%windowLogShards]
}

// Purge remove todo timestamp t com t <= now-window. A borda exata conta
// como expirada. Chave desconhecida é janela vazia: no-op.
func (s *WindowLog) Purge(key domain.Key, now time.Time, window time.Duration) {
	s.noteWindow(window)

	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.windows[string(key)]
	if !ok {
		return
	}

	cutoff := now.Add(-window)
	idx := 0
	for idx < len(w.events) && !w.events[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		// compacta para o início do slice, reaproveitando o array
		w.events = append(w.events[:0], w.events[idx:]...)
	}
}

func (s *WindowLog) Count(key domain.Key) int {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.windows[string(key)]
	if !ok {
		return 0
	}
	return len(w.events)
}

// Record anexa now ao histórico da chave, criando a janela se necessário.
// Nunca falha.
func (s *WindowLog) Record(key domain.Key, now time.Time) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.windows[string(key)]
	if !ok {
		w = &clientWindow{}
		sh.windows[string(key)] = w
	}
	w.events = append(w.events, now)
	w.lastSeen = now
}

// Oldest retorna o timestamp retido mais antigo da chave, ou ok=false se a
// janela está vazia ou não existe.
func (s *WindowLog) Oldest(key domain.Key) (time.Time, bool) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.windows[string(key)]
	if !ok || len(w.events) == 0 {
		return time.Time{}, false
	}
	return w.events[0], true
}

func (s *WindowLog) noteWindow(window time.Duration) {
	for {
		cur := s.maxWindow.Load()
		if int64(window) <= cur {
			return
		}
		if s.maxWindow.CompareAndSwap(cur, int64(window)) {
			return
		}
	}
}

// Cleanup descarta janelas sem atividade há mais que idleTTL (ou mais que a
// maior janela já vista, o que for maior).
//
// Como Record sempre atualiza lastSeen, nenhum evento é mais novo que
// lastSeen; com o piso na janela, tudo que o janitor descarta já expirou.
func (s *WindowLog) Cleanup() {
	ttl := s.idleTTL
	if floor := time.Duration(s.maxWindow.Load()); ttl < floor {
		ttl = floor
	}
	cutoff := time.Now().Add(-ttl)

	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, w := range sh.windows {
			if w.lastSeen.Before(cutoff) {
				delete(sh.windows, k)
			}
		}
		sh.mu.Unlock()
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *WindowLog) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
// (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}
