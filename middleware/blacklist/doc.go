// Package blacklist fornece o middleware HTTP (net/http) de lista negra de IPs
// com escalonamento de bans.
//
// Visão geral (camadas):
//
//   - domain: veredito, estado derivado, política, esquema de chaves e contrato do store
//   - application: Tracker (decisão e escalonamento) e GlobalCounter, sem net/http
//   - infra: RedisStore, MemoryStore e stores de estatística
//   - blacklist (este pacote): Pipeline de etapas + tradução para status/JSON/headers
//
// Fluxo por requisição:
//
//  1. Extrai o IP do cliente (sem IP: registra e deixa passar, sem estado)
//  2. blacklist:{ip} presente -> 403 "Your IP is blacklisted"
//  3. blacklist_{ip} / temp_blacklist_{ip} presentes -> 403 (permanente tem prioridade)
//  4. Incrementa request_count_{ip}; acima do limiar cria o ban -> 403
//  5. Encaminha; se o handler respondeu 429, incrementa o contador global e,
//     no limiar, bane o IP da requisição por 24h
//  6. Aplica o TTL da janela ao request_count (uma vez por janela)
//
// Nenhum handler roda para um IP banido. Todos os TTLs são do store; a
// aplicação nunca compara horários.
package blacklist
