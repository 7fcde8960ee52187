package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"library-gateway/internal/config"
	blinfra "library-gateway/middleware/blacklist/infra"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handlerFor(t *testing.T, vars map[string]string) (http.Handler, *blinfra.MemoryStore) {
	t.Helper()
	cfg, err := config.Parse(env.Options{Environment: vars})
	require.NoError(t, err)
	store := blinfra.NewMemoryStore()
	h, _ := newHandler(t.Context(), cfg, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h, store
}

func get(h http.Handler, path, remote, xff string) int {
	r := httptest.NewRequest(http.MethodGet, "http://library"+path, nil)
	r.RemoteAddr = remote
	if xff != "" {
		r.Header.Set("X-Forwarded-For", xff)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w.Code
}

func TestNewHandler_RotatingXForwardedForDoesNotEvadeBan(t *testing.T) {
	h, _ := handlerFor(t, map[string]string{})

	for i := 1; i <= 5; i++ {
		require.Equal(t, http.StatusOK, get(h, "/books", "10.0.0.1:4000", fmt.Sprintf("203.0.113.%d", i)), "request %d", i)
	}
	assert.Equal(t, http.StatusForbidden, get(h, "/books", "10.0.0.1:4000", "203.0.113.99"))
}

func TestNewHandler_TrustXForwardedForFromConfig(t *testing.T) {
	h, _ := handlerFor(t, map[string]string{"TRUST_XFF": "true"})

	for i := 0; i < 6; i++ {
		get(h, "/books", "10.0.0.1:4000", "203.0.113.7")
	}
	assert.Equal(t, http.StatusForbidden, get(h, "/books", "10.0.0.2:4000", "203.0.113.7"))
	assert.Equal(t, http.StatusOK, get(h, "/books", "10.0.0.1:4000", "203.0.113.8"))
}

func TestNewHandler_KeyPrefixFromConfig(t *testing.T) {
	h, store := handlerFor(t, map[string]string{"BLACKLIST_KEY_PREFIX": "lib:"})

	for i := 0; i < 6; i++ {
		get(h, "/books", "10.0.0.1:4000", "")
	}
	ttl, err := store.TTL(t.Context(), "lib:temp_blacklist_10.0.0.1")
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

func TestNewHandler_SwitchesDisableMiddlewares(t *testing.T) {
	h, store := handlerFor(t, map[string]string{
		"BLACKLIST_ENABLED": "false",
		"QUOTA_ENABLED":     "false",
	})

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, get(h, "/books", "10.0.0.1:4000", ""))
	}
	assert.Zero(t, store.Len())
}
