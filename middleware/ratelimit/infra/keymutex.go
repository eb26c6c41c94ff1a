package infra

import (
	"hash/fnv"
	"sync"

	"admission-guard/middleware/ratelimit/domain"
)

// KeyMutex implementa domain.KeyLocker com locks particionados por hash da
// chave: a mesma chave sempre cai no mesmo mutex (serializa a decisão do
// cliente), chaves diferentes quase sempre caem em mutexes diferentes.
type KeyMutex struct {
	shards []sync.Mutex
}

// NewKeyMutex cria o locker com `shards` partições (64 se <= 0).
func NewKeyMutex(shards int) *KeyMutex {
	if shards <= 0 {
		shards = 64
	}
	return &KeyMutex{shards: make([]sync.Mutex, shards)}
}

// Lock implementa domain.KeyLocker.
func (m *KeyMutex) Lock(key domain.Key) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &m.shards[int(h.Sum32())%len(m.shards)]
	mu.Lock()
	return mu.Unlock
}
