package application

import (
	"context"

	"library-gateway/middleware/blacklist/domain"
)

// GlobalCounter é o contador de violações (429) de todos os clientes. Fica no
// store, não em memória, para valer entre processos e instâncias.
type GlobalCounter struct {
	Store  domain.Store
	Keys   domain.Keys
	Policy domain.Policy
}

func NewGlobalCounter(store domain.Store, keys domain.Keys, policy domain.Policy) GlobalCounter {
	return GlobalCounter{Store: store, Keys: keys, Policy: policy.WithDefaults()}
}

// IsBanned consulta blacklist:{ip}.
func (g GlobalCounter) IsBanned(ctx context.Context, id domain.Key) (bool, error) {
	return g.Store.Exists(ctx, g.Keys.GlobalBan(id))
}

// Observe registra uma violação de id. Quando o contador atinge o limiar ele
// volta a zero na mesma operação e id recebe o ban global.
func (g GlobalCounter) Observe(ctx context.Context, id domain.Key) (domain.GlobalObservation, error) {
	n, tripped, err := g.Store.IncrAndReset(ctx, g.Keys.GlobalViolations(), g.Policy.GlobalViolationThreshold)
	if err != nil {
		return domain.GlobalObservation{}, err
	}
	obs := domain.GlobalObservation{Count: n, Tripped: tripped}
	if !tripped {
		return obs, nil
	}
	if _, err := g.Store.SetNX(ctx, g.Keys.GlobalBan(id), g.Policy.GlobalBanTTL); err != nil {
		return obs, err
	}
	return obs, nil
}
