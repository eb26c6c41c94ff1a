// Package ratelimit fornece adapters HTTP (net/http) para admissão por janela
// deslizante, proteção global de flood e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (Check/Peek, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela em memória, locks por chave,
//     token bucket, semáforo), detalhes de infraestrutura
//   - ratelimit (este pacote): middlewares HTTP + wiring/extração de chave +
//     tradução da Decision para status/headers/JSON
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (IP/header/XFF)
//  2. Chama a camada application: Check(chave, agora) → Decision
//  3. Se negado, responde 429 com Retry-After e o envelope rate_limit_info
//  4. Se permitido, chama o próximo handler (ex: reverse proxy)
//
// O endpoint de status usa Peek, que nunca consome cota.
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o
// comportamento, como RATE_MAX_REQUESTS, RATE_WINDOW, FLOOD_RPS e
// CONCURRENCY_MAX.
package ratelimit
