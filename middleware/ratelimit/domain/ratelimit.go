package domain

// Camada de domínio da cota por rota.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Key identifica um balde: cliente + rota.
type Key string

// NewKey monta a chave do balde de id na rota route.
func NewKey(id, route string) Key { return Key(id + "|" + route) }

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// A camada de infra usa golang.org/x/time/rate (token bucket).
type Limiter interface {
	Allow() bool
}

// RetryHinter é opcional: um Limiter que sabe quanto falta para o próximo
// token.
type RetryHinter interface {
	RetryAfter() time.Duration
}

// LimiterStore obtém um limiter por chave.
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// Quota é "Limit requisições a cada Window".
type Quota struct {
	Limit  int
	Window time.Duration
}

// PerSecond converte a cota para a taxa de reposição do token bucket.
func (q Quota) PerSecond() float64 {
	if q.Limit <= 0 || q.Window <= 0 {
		return 0
	}
	return float64(q.Limit) / q.Window.Seconds()
}
