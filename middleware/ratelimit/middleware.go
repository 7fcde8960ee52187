package ratelimit

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"library-gateway/middleware/clientip"
	"library-gateway/middleware/ratelimit/application"
	"library-gateway/middleware/ratelimit/domain"
)

// RouteFunc devolve a rota usada na chave do balde; "" desliga a cota para a
// requisição.
type RouteFunc func(r *http.Request) string

type Options struct {
	Store domain.LimiterStore
	KeyFn clientip.KeyFunc
	// Paths restringe a cota a prefixos de caminho (cada prefixo é uma rota).
	// Vazio = todas as rotas, chaveadas por caminho.
	Paths               []string
	RouteFn             RouteFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// PrefixRoute usa o prefixo mais longo que casa com o caminho. O prefixo só
// casa em limite de segmento: "/users" cobre "/users" e "/users/me", não
// "/usersX".
func PrefixRoute(prefixes []string) RouteFunc {
	return func(r *http.Request) string {
		best := ""
		for _, p := range prefixes {
			if hasSegmentPrefix(r.URL.Path, p) && len(p) > len(best) {
				best = p
			}
		}
		return best
	}
}

func hasSegmentPrefix(path, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || strings.HasSuffix(prefix, "/") || path[len(prefix)] == '/'
}

func pathRoute(r *http.Request) string { return r.URL.Path }

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = clientip.DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.RouteFn == nil {
		opts.RouteFn = pathRoute
		if len(opts.Paths) > 0 {
			opts.RouteFn = PrefixRoute(opts.Paths)
		}
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := opts.RouteFn(r)
			id, ok := clientip.Resolve(r, opts.KeyFn)
			if route == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}
			key := domain.NewKey(id, route)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", string(key))
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := svc.Decide(key)
			if !dec.Allowed {
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				writeDetail(w, opts.RejectStatus, http.StatusText(opts.RejectStatus))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
