// Package clientip extrai o identificador do cliente (IP de origem) de uma
// requisição HTTP e o transporta pelo contexto da requisição.
package clientip

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// KeyFunc retorna o identificador do cliente. ok=false indica que a requisição
// não tem um endereço de origem utilizável.
type KeyFunc func(r *http.Request) (key string, ok bool)

type ctxKey struct{}

// DefaultKeyFunc monta a extração padrão: header configurado, depois o
// primeiro IP do X-Forwarded-For (se confiável) e por fim o host do RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) (string, bool) {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v, true
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original); valor que não
			// é IP cai para o RemoteAddr
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
					return ip.String(), true
				}
			}
		}

		addr := strings.TrimSpace(r.RemoteAddr)
		if addr == "" {
			return "", false
		}
		host, _, err := net.SplitHostPort(addr)
		if err == nil {
			if host == "" {
				return "", false
			}
			return host, true
		}
		// RemoteAddr sem porta (ex.: unix socket ou testes)
		if ip := net.ParseIP(addr); ip != nil {
			return ip.String(), true
		}
		return "", false
	}
}

// WithKey guarda o identificador no contexto.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKey{}, key)
}

// FromContext devolve o identificador gravado por WithKey.
func FromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(ctxKey{}).(string)
	return key, ok && key != ""
}

// Resolve usa o identificador já presente no contexto e, na falta dele,
// aplica fn.
func Resolve(r *http.Request, fn KeyFunc) (string, bool) {
	if key, ok := FromContext(r.Context()); ok {
		return key, true
	}
	if fn == nil {
		fn = DefaultKeyFunc("", false)
	}
	return fn(r)
}
