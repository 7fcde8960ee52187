// Package infra contém implementações concretas dos contratos do pacote domain.
//
//   - RedisStore: store compartilhado via go-redis (INCR, SET NX EX e scripts Lua)
//   - MemoryStore: store em memória com TTL e relógio injetável (dev e testes)
//   - RedisStatsStore / MemoryStatsStore: estatísticas das decisões
package infra
