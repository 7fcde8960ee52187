package ratelimit

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"library-gateway/middleware/ratelimit/domain"
	"library-gateway/middleware/ratelimit/infra"
)

func serve(h http.Handler, path, remote string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "http://example"+path, nil)
	r.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	store := infra.NewStore(0.02, 1)

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Store:               store,
		RejectStatus:        http.StatusTooManyRequests,
		RetryAfter:          1 * time.Second,
		AddRateLimitHeaders: true,
	})(next)

	// 1) primeira passa
	w1 := serve(h, "/users/me", "10.0.0.1:1234")
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Key"); got != "10.0.0.1|/users/me" {
		t.Fatalf("expected X-RateLimit-Key header, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Burst"); got != "1" {
		t.Fatalf("expected X-RateLimit-Burst=1, got %q", got)
	}

	// 2) segunda deve bloquear (burst=1 e rps bem baixo)
	w2 := serve(h, "/users/me", "10.0.0.1:1234")
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got == "" {
		t.Fatalf("expected Retry-After header to be set")
	}
	var body map[string]string
	if err := json.NewDecoder(w2.Body).Decode(&body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["detail"] != "Too Many Requests" {
		t.Fatalf("unexpected detail %q", body["detail"])
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
}

func TestMiddleware_RetryAfterFromBucket(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := infra.NewQuotaStore(domain.Quota{Limit: 5, Window: time.Minute}, infra.WithClock(func() time.Time { return now }))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{Store: store})(next)

	for i := 1; i <= 5; i++ {
		if w := serve(h, "/users/token", "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("expected request %d to pass, got %d", i, w.Code)
		}
	}
	w := serve(h, "/users/token", "10.0.0.1:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	// 5 por minuto = um token a cada 12s
	if got := strings.TrimSpace(w.Header().Get("Retry-After")); got != "12" && got != "13" {
		t.Fatalf("expected Retry-After ~12, got %q", got)
	}
}

func TestMiddleware_OnlyConfiguredPaths(t *testing.T) {
	store := infra.NewStore(0.02, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{Store: store, Paths: []string{"/users"}})(next)

	if w := serve(h, "/users/token", "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("expected first /users request 200, got %d", w.Code)
	}
	// mesma rota (prefixo /users), outro caminho
	if w := serve(h, "/users/me", "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected /users/me to share the /users bucket, got %d", w.Code)
	}
	for i := 0; i < 3; i++ {
		if w := serve(h, "/books", "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("expected /books outside quota, got %d", w.Code)
		}
	}
}

func TestPrefixRoute_MatchesOnSegmentBoundary(t *testing.T) {
	route := PrefixRoute([]string{"/users", "/users/token", "/books/"})

	cases := map[string]string{
		"/users":         "/users",
		"/users/me":      "/users",
		"/users/token":   "/users/token",
		"/users/token/x": "/users/token",
		"/usersX":        "",
		"/users-admin":   "",
		"/users/tokens":  "/users",
		"/books/1":       "/books/",
		"/books":         "",
		"/":              "",
	}
	for path, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "http://example"+path, nil)
		if got := route(r); got != want {
			t.Fatalf("path %q: expected route %q, got %q", path, want, got)
		}
	}
}

func TestMiddleware_KeyByHeader(t *testing.T) {
	store := infra.NewStore(0.02, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:      store,
		KeyHeader:  "X-Api-Key",
		RetryAfter: 1 * time.Second,
	})(next)

	// duas chaves diferentes => ambos devem passar (cada chave tem seu próprio limiter)
	for _, k := range []string{"k1", "k2"} {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		r.Header.Set("X-Api-Key", k)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for key %s, got %d", k, w.Code)
		}
	}
}

func TestMiddleware_UnidentifiedClientPassesThrough(t *testing.T) {
	store := infra.NewStore(0.02, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{Store: store})(next)

	for i := 0; i < 3; i++ {
		if w := serve(h, "/", ""); w.Code != http.StatusOK {
			t.Fatalf("expected 200 for request without address, got %d", w.Code)
		}
	}
}
