// Package ratelimit fornece o middleware HTTP (net/http) de cota por rota:
// cada par (cliente, rota) tem um token bucket próprio.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: caso de uso (decisão allow/deny) sem net/http
//   - infra: token bucket por chave (golang.org/x/time/rate)
//   - ratelimit (este pacote): middleware HTTP + extração de chave/rota + tradução para status/headers
//
// Fluxo:
//
//  1. Resolve o cliente (contexto, header, XFF ou RemoteAddr) e a rota
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, responde 429 {"detail": "Too Many Requests"} com Retry-After
//  4. Se permitido, chama o próximo handler
//
// O 429 é o sinal que o middleware blacklist observa para alimentar o
// contador global de violações.
package ratelimit
