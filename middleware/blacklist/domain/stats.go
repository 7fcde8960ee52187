package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão da lista negra.
//
// Cuidado com cardinalidade: Key e Path sem controle podem explodir o número
// de chaves no Redis.
type StatsEvent struct {
	Key     Key
	Verdict Verdict
	// Escalated marca a requisição que criou o ban (não uma que só o encontrou).
	Escalated bool

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste estatísticas das decisões.
//
// O middleware trata erro como best-effort (não derruba a requisição).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
