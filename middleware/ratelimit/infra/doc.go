// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - WindowLog: histórico de timestamps por chave, com shards e janitor
//   - KeyMutex: lock por chave para atomicidade da sequência de decisão
//   - FloodGuard: token bucket global usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de concorrência
package infra
