package blacklist

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"library-gateway/middleware/blacklist/application"
	"library-gateway/middleware/blacklist/domain"
	"library-gateway/middleware/clientip"
)

type Options struct {
	Store  domain.Store
	Keys   domain.Keys
	Policy domain.Policy

	Stats   domain.StatsStore
	Metrics *Metrics
	Logger  *slog.Logger

	KeyFn              clientip.KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool

	// StoreTimeout limita cada etapa que fala com o store. Padrão 250ms.
	StoreTimeout time.Duration
	// FailClosed rejeita com 503 quando o store falha. O padrão (false) deixa
	// a requisição passar.
	FailClosed bool

	// RejectStatus é o status dos bans. Padrão 403.
	RejectStatus int
	// ViolationStatus é o status do limitador por rota que conta como
	// violação. Padrão 429.
	ViolationStatus int

	// LogRequests registra ip, caminho e método de toda requisição.
	LogRequests bool
}

func (o Options) withDefaults() Options {
	o.Policy = o.Policy.WithDefaults()
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Logger = o.Logger.With(slog.String("component", "blacklist"))
	if o.KeyFn == nil {
		o.KeyFn = clientip.DefaultKeyFunc(o.KeyHeader, o.TrustXForwardedFor)
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 250 * time.Millisecond
	}
	if o.RejectStatus == 0 {
		o.RejectStatus = http.StatusForbidden
	}
	if o.ViolationStatus == 0 {
		o.ViolationStatus = http.StatusTooManyRequests
	}
	return o
}

// Middleware monta o Pipeline da lista negra em volta de next. Sem Store o
// middleware não faz nada.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	p := NewPipeline(opts)
	return p.Then
}

// NewPipeline devolve as etapas na ordem em que rodam:
//
//	identify -> access log -> ban global -> ban por IP -> contagem (modo request)
//
// e os observers: janela do request_count, violações (429) -> contador global
// e, no modo violation, escalonamento.
func NewPipeline(opts Options) Pipeline {
	g := newGuard(opts)
	opts = g.opts

	stages := []Stage{g.identify}
	if opts.LogRequests {
		stages = append(stages, g.accessLog)
	}
	stages = append(stages, g.checkGlobal, g.checkBans)
	if opts.Policy.CountMode == domain.CountRequests {
		stages = append(stages, g.count)
	}

	return Pipeline{
		Stages:    stages,
		Observers: []Observer{g.observe},
	}
}

type guard struct {
	opts    Options
	tracker application.Tracker
	global  application.GlobalCounter
}

func newGuard(opts Options) *guard {
	opts = opts.withDefaults()
	return &guard{
		opts:    opts,
		tracker: application.NewTracker(opts.Store, opts.Keys, opts.Policy),
		global:  application.NewGlobalCounter(opts.Store, opts.Keys, opts.Policy),
	}
}

// requestState acompanha a requisição pelas etapas.
type requestState struct {
	id      domain.Key
	counted bool
}

type stateKey struct{}

func stateFrom(r *http.Request) (*requestState, bool) {
	st, ok := r.Context().Value(stateKey{}).(*requestState)
	return st, ok
}

func (g *guard) identify(r *http.Request) Result {
	id, ok := g.opts.KeyFn(r)
	if !ok {
		g.opts.Logger.Warn("unidentifiable client, skipping blacklist",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("path", r.URL.Path))
		return Continue(r)
	}
	ctx := clientip.WithKey(r.Context(), id)
	ctx = context.WithValue(ctx, stateKey{}, &requestState{id: domain.Key(id)})
	return Continue(r.WithContext(ctx))
}

func (g *guard) accessLog(r *http.Request) Result {
	ip, _ := clientip.FromContext(r.Context())
	g.opts.Logger.Info("request",
		slog.String("ip", ip),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Time("time", time.Now()))
	return Continue(r)
}

func (g *guard) checkGlobal(r *http.Request) Result {
	st, ok := stateFrom(r)
	if !ok {
		return Continue(r)
	}
	ctx, cancel := context.WithTimeout(r.Context(), g.opts.StoreTimeout)
	defer cancel()

	banned, err := g.global.IsBanned(ctx, st.id)
	if err != nil {
		return g.storeFailure(r, "global-check", err)
	}
	if !banned {
		return Continue(r)
	}

	retry, _ := g.tracker.BanTTL(ctx, st.id, domain.RejectGlobal)
	g.record(r, st.id, domain.RejectGlobal, false)
	return ShortCircuit(Rejection{Status: g.opts.RejectStatus, Detail: globalBanDetail, RetryAfter: retry})
}

func (g *guard) checkBans(r *http.Request) Result {
	st, ok := stateFrom(r)
	if !ok {
		return Continue(r)
	}
	ctx, cancel := context.WithTimeout(r.Context(), g.opts.StoreTimeout)
	defer cancel()

	verdict, err := g.tracker.Decide(ctx, st.id)
	if err != nil {
		return g.storeFailure(r, "decide", err)
	}
	if verdict == domain.Allow {
		return Continue(r)
	}

	retry, _ := g.tracker.BanTTL(ctx, st.id, verdict)
	g.record(r, st.id, verdict, false)
	return ShortCircuit(Rejection{
		Status:     g.opts.RejectStatus,
		Detail:     banDetail(verdict, g.opts.Policy),
		RetryAfter: retry,
	})
}

func (g *guard) count(r *http.Request) Result {
	st, ok := stateFrom(r)
	if !ok {
		return Continue(r)
	}
	ctx, cancel := context.WithTimeout(r.Context(), g.opts.StoreTimeout)
	defer cancel()

	esc, err := g.tracker.Escalate(ctx, st.id)
	if err != nil && esc.Verdict == domain.Allow {
		return g.storeFailure(r, "escalate", err)
	}
	if err != nil {
		g.opts.Logger.Warn("blacklist escalation incomplete",
			slog.String("ip", string(st.id)), slog.Any("error", err))
	}
	st.counted = true
	if esc.Verdict == domain.Allow {
		return Continue(r)
	}
	return g.reject(ctx, r, st.id, esc)
}

func (g *guard) reject(ctx context.Context, r *http.Request, id domain.Key, esc domain.Escalation) Result {
	ttl := g.opts.Policy.TempBanTTL
	if esc.Verdict == domain.RejectPermanent {
		ttl = g.opts.Policy.PermanentBanTTL
	}
	if !esc.Created {
		// o ban já existia: vale o tempo que resta
		if left, err := g.tracker.BanTTL(ctx, id, esc.Verdict); err == nil && left > 0 {
			ttl = left
		}
	}
	if esc.Created {
		g.opts.Logger.Info("client blacklisted",
			slog.String("ip", string(id)),
			slog.String("ban", esc.Verdict.String()),
			slog.Int64("count", esc.Count),
			slog.Duration("ttl", ttl))
	}
	g.record(r, id, esc.Verdict, esc.Created)
	return ShortCircuit(Rejection{
		Status:     g.opts.RejectStatus,
		Detail:     escalationDetail(esc.Verdict, g.opts.Policy),
		RetryAfter: ttl,
	})
}

// observe roda depois do handler. Usa um contexto que não é cancelado com a
// desconexão do cliente: mutações parciais não são desfeitas.
func (g *guard) observe(r *http.Request, status int) {
	st, ok := stateFrom(r)
	if !ok {
		return
	}
	base := context.WithoutCancel(r.Context())
	g.record(r, st.id, domain.Allow, false)

	if status == g.opts.ViolationStatus {
		g.observeViolation(base, st.id)
	}

	if st.counted {
		ctx, cancel := context.WithTimeout(base, g.opts.StoreTimeout)
		defer cancel()
		if err := g.tracker.Touch(ctx, st.id); err != nil {
			g.logStoreError("window", st.id, err)
		}
	}
}

func (g *guard) observeViolation(base context.Context, id domain.Key) {
	ctx, cancel := context.WithTimeout(base, g.opts.StoreTimeout)
	defer cancel()

	if g.opts.Policy.CountMode == domain.CountViolations {
		esc, err := g.tracker.Escalate(ctx, id)
		if err != nil {
			g.logStoreError("escalate", id, err)
		}
		if esc.Count > 0 {
			// a janela começa na primeira violação
			if err := g.tracker.Touch(ctx, id); err != nil {
				g.logStoreError("window", id, err)
			}
		}
		if esc.Created {
			g.opts.Logger.Info("client blacklisted",
				slog.String("ip", string(id)),
				slog.String("ban", esc.Verdict.String()),
				slog.Int64("count", esc.Count))
		}
	}

	obs, err := g.global.Observe(ctx, id)
	if err != nil {
		g.logStoreError("global-observe", id, err)
		return
	}
	g.opts.Metrics.violation(obs.Tripped)
	if obs.Tripped {
		g.opts.Logger.Info("client globally blacklisted",
			slog.String("ip", string(id)),
			slog.Int64("violations", obs.Count),
			slog.Duration("ttl", g.opts.Policy.GlobalBanTTL))
	}
}

func (g *guard) storeFailure(r *http.Request, step string, err error) Result {
	policy := "open"
	if g.opts.FailClosed {
		policy = "closed"
	}
	g.opts.Metrics.storeError(step, policy)
	id, _ := clientip.FromContext(r.Context())
	g.opts.Logger.Warn("blacklist store failure",
		slog.String("step", step),
		slog.String("policy", policy),
		slog.String("ip", id),
		slog.Any("error", err))

	if g.opts.FailClosed {
		return ShortCircuit(Rejection{Status: http.StatusServiceUnavailable, Detail: storeUnavailableDetail})
	}
	return Continue(r)
}

func (g *guard) logStoreError(step string, id domain.Key, err error) {
	g.opts.Metrics.storeError(step, "observe")
	g.opts.Logger.Warn("blacklist store failure",
		slog.String("step", step),
		slog.String("ip", string(id)),
		slog.Any("error", err))
}

// record é best-effort: falha de estatística não afeta a requisição.
func (g *guard) record(r *http.Request, id domain.Key, v domain.Verdict, escalated bool) {
	g.opts.Metrics.verdict(v, escalated)
	if g.opts.Stats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), g.opts.StoreTimeout)
	defer cancel()
	_ = g.opts.Stats.Record(ctx, domain.StatsEvent{
		Key:       id,
		Verdict:   v,
		Escalated: escalated,
		Method:    r.Method,
		Path:      r.URL.Path,
		At:        time.Now(),
	})
}
