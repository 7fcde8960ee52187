package application

import (
	"context"
	"time"

	"library-gateway/middleware/blacklist/domain"
)

// Tracker concentra a máquina de estados por identificador.
type Tracker struct {
	Store  domain.Store
	Keys   domain.Keys
	Policy domain.Policy
}

func NewTracker(store domain.Store, keys domain.Keys, policy domain.Policy) Tracker {
	return Tracker{Store: store, Keys: keys, Policy: policy.WithDefaults()}
}

// Decide só lê o store. O ban permanente tem prioridade sobre o temporário.
func (t Tracker) Decide(ctx context.Context, id domain.Key) (domain.Verdict, error) {
	perm, err := t.Store.Exists(ctx, t.Keys.PermanentBan(id))
	if err != nil {
		return domain.Allow, err
	}
	if perm {
		return domain.RejectPermanent, nil
	}

	temp, err := t.Store.Exists(ctx, t.Keys.TemporaryBan(id))
	if err != nil {
		return domain.Allow, err
	}
	if temp {
		return domain.RejectTemporary, nil
	}
	return domain.Allow, nil
}

// Escalate incrementa request_count e, acima do limiar, cria o ban.
//
// Bans são criados com SETNX: uma chamada redundante (retry, corrida entre
// duas requisições do mesmo cliente) nunca estende o TTL de um ban existente.
// was_temp_blacklisted é renovado a cada ban temporário e não é apagado ao
// escalar para permanente.
//
// A ordem das leituras importa: o ban temporário é gravado antes de
// was_temp_blacklisted, então quem lê was_temp_blacklisted e depois não acha o
// ban temporário sabe que ele expirou. Enquanto o ban temporário estiver
// ativo a chamada é redundante e devolve RejectTemporary.
func (t Tracker) Escalate(ctx context.Context, id domain.Key) (domain.Escalation, error) {
	n, err := t.Store.Incr(ctx, t.Keys.RequestCount(id))
	if err != nil {
		return domain.Escalation{Verdict: domain.Allow}, err
	}
	esc := domain.Escalation{Verdict: domain.Allow, Count: n}
	if n <= t.Policy.ViolationThreshold {
		return esc, nil
	}

	// Se nenhum Touch conseguiu aplicar a janela, o contador ficaria sem TTL
	// e o cliente nunca mais sairia do ban. ExpireNX não mexe num TTL já
	// existente, então a janela continua fixa.
	_, expireErr := t.Store.ExpireNX(ctx, t.Keys.RequestCount(id), t.Policy.WindowTTL)

	esc, err = t.ban(ctx, id, esc)
	if err != nil {
		return esc, err
	}
	return esc, expireErr
}

func (t Tracker) ban(ctx context.Context, id domain.Key, esc domain.Escalation) (domain.Escalation, error) {
	wasTemp, err := t.Store.Exists(ctx, t.Keys.WasTempBanned(id))
	if err != nil {
		return esc, err
	}
	if wasTemp {
		active, err := t.Store.Exists(ctx, t.Keys.TemporaryBan(id))
		if err != nil {
			return esc, err
		}
		if active {
			esc.Verdict = domain.RejectTemporary
			return esc, nil
		}
		created, err := t.Store.SetNX(ctx, t.Keys.PermanentBan(id), t.Policy.PermanentBanTTL)
		if err != nil {
			return esc, err
		}
		esc.Verdict, esc.Created = domain.RejectPermanent, created
		return esc, nil
	}

	created, err := t.Store.SetNX(ctx, t.Keys.TemporaryBan(id), t.Policy.TempBanTTL)
	if err != nil {
		return esc, err
	}
	esc.Verdict, esc.Created = domain.RejectTemporary, created
	if err := t.Store.Set(ctx, t.Keys.WasTempBanned(id), t.Policy.WasTempTTL); err != nil {
		// o ban temporário já existe; sem a memória só se perde a escalada
		return esc, err
	}
	return esc, nil
}

// Touch aplica o TTL da janela ao request_count depois de uma passagem sem
// rejeição. A janela é fixa: o TTL é aplicado uma vez, a partir da primeira
// requisição.
func (t Tracker) Touch(ctx context.Context, id domain.Key) error {
	_, err := t.Store.ExpireNX(ctx, t.Keys.RequestCount(id), t.Policy.WindowTTL)
	return err
}

// State deriva o estado atual a partir das chaves existentes. O segundo
// retorno é o request_count corrente.
func (t Tracker) State(ctx context.Context, id domain.Key) (domain.State, int64, error) {
	verdict, err := t.Decide(ctx, id)
	if err != nil {
		return domain.Clear, 0, err
	}
	n, err := t.Store.Counter(ctx, t.Keys.RequestCount(id))
	if err != nil {
		return domain.Clear, 0, err
	}

	switch {
	case verdict == domain.RejectPermanent:
		return domain.PermanentBanned, n, nil
	case verdict == domain.RejectTemporary:
		return domain.TempBanned, n, nil
	case n > 0:
		return domain.Windowed, n, nil
	default:
		return domain.Clear, 0, nil
	}
}

// BanTTL devolve o tempo restante do ban que motivou verdict (0 se não houver).
func (t Tracker) BanTTL(ctx context.Context, id domain.Key, verdict domain.Verdict) (time.Duration, error) {
	switch verdict {
	case domain.RejectPermanent:
		return t.Store.TTL(ctx, t.Keys.PermanentBan(id))
	case domain.RejectTemporary:
		return t.Store.TTL(ctx, t.Keys.TemporaryBan(id))
	case domain.RejectGlobal:
		return t.Store.TTL(ctx, t.Keys.GlobalBan(id))
	default:
		return 0, nil
	}
}
