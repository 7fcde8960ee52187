package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"library-gateway/internal/config"
	"library-gateway/middleware/blacklist"
	bldomain "library-gateway/middleware/blacklist/domain"
	blinfra "library-gateway/middleware/blacklist/infra"
	"library-gateway/middleware/ratelimit"
	rlinfra "library-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
)

// Exemplo: a lista negra e a cota injetadas direto no webserver (sem proxy).
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config error", slog.Any("error", err))
		os.Exit(1)
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store bldomain.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = rdb.Close() }()
		store = blinfra.NewRedisStore(rdb)
	} else {
		mem := blinfra.NewMemoryStore()
		mem.StartJanitor(ctx)
		store = mem
	}

	h, paths := newHandler(ctx, cfg, store, logger)

	addr := cfg.ListenAddr

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening",
		slog.String("addr", addr),
		slog.Bool("blacklist", cfg.Blacklist.Enabled),
		slog.Bool("quota", cfg.Quota.Enabled),
		slog.Any("quota_paths", paths),
		slog.Bool("trust_xff", cfg.TrustXFF))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

// newHandler monta lista negra -> cota -> rotas da biblioteca a partir da
// configuração.
func newHandler(ctx context.Context, cfg config.Config, store bldomain.Store, logger *slog.Logger) (http.Handler, []string) {
	// sem QUOTA_PATHS o exemplo limita só as rotas sensíveis de usuário
	paths := cfg.Quota.Paths
	if len(paths) == 0 {
		paths = []string{"/users/token", "/users/create"}
	}

	h := http.Handler(libraryMux())
	if cfg.Quota.Enabled {
		quota := rlinfra.NewQuotaStore(cfg.QuotaLimit())
		quota.StartJanitor(ctx)
		h = ratelimit.Middleware(ratelimit.Options{
			Store:              quota,
			Paths:              paths,
			KeyHeader:          cfg.KeyHeader,
			TrustXForwardedFor: cfg.TrustXFF,
		})(h)
	}
	if cfg.Blacklist.Enabled {
		h = blacklist.Middleware(blacklist.Options{
			Store:              store,
			Keys:               bldomain.Keys{Prefix: cfg.Blacklist.KeyPrefix},
			Policy:             cfg.Policy(),
			Logger:             logger,
			KeyHeader:          cfg.KeyHeader,
			TrustXForwardedFor: cfg.TrustXFF,
			StoreTimeout:       cfg.Blacklist.StoreTimeout,
			FailClosed:         !cfg.Blacklist.FailOpen,
			LogRequests:        cfg.LogRequests,
		})(h)
	}
	return h, paths
}

type book struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

var books = []book{
	{ID: 1, Title: "Dom Casmurro", Author: "Machado de Assis"},
	{ID: 2, Title: "Vidas Secas", Author: "Graciliano Ramos"},
}

func libraryMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /books", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, books)
	})
	mux.HandleFunc("POST /users/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "demo", "token_type": "bearer"})
	})
	mux.HandleFunc("POST /users/create", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"username": "demo"})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
