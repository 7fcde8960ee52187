package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.Any("error", err))
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if cfg.UpstreamURL == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return err
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error", slog.String("path", r.URL.Path), slog.Any("error", err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, stats, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	h := http.Handler(proxy)
	if cfg.Quota.Enabled {
		quota := rlinfra.NewQuotaStore(cfg.QuotaLimit())
		quota.StartJanitor(ctx)
		h = ratelimit.Middleware(ratelimit.Options{
			Store:              quota,
			Paths:              cfg.Quota.Paths,
			KeyHeader:          cfg.KeyHeader,
			TrustXForwardedFor: cfg.TrustXFF,
		})(h)
	}
	if cfg.Blacklist.Enabled {
		h = blacklist.Middleware(blacklist.Options{
			Store:              store,
			Keys:               bldomain.Keys{Prefix: cfg.Blacklist.KeyPrefix},
			Policy:             cfg.Policy(),
			Stats:              stats,
			Metrics:            blacklist.NewMetrics(reg),
			Logger:             logger,
			KeyHeader:          cfg.KeyHeader,
			TrustXForwardedFor: cfg.TrustXFF,
			StoreTimeout:       cfg.Blacklist.StoreTimeout,
			FailClosed:         !cfg.Blacklist.FailOpen,
			LogRequests:        cfg.LogRequests,
		})(h)
	}

	srv := newServer(cfg.ListenAddr, h)
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsSrv = newServer(cfg.MetricsAddr, mux)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", slog.Any("error", err))
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
	}()

	logger.Info("gateway listening",
		slog.String("addr", cfg.ListenAddr),
		slog.String("upstream", target.String()),
		slog.String("metrics", cfg.MetricsAddr))
	logger.Info("blacklist",
		slog.Bool("enabled", cfg.Blacklist.Enabled),
		slog.Bool("redis", cfg.Redis.Addr != ""),
		slog.Bool("fail_open", cfg.Blacklist.FailOpen),
		slog.String("count_mode", cfg.Blacklist.CountMode),
		slog.Int64("threshold", cfg.Blacklist.ViolationThreshold))
	logger.Info("quota",
		slog.Bool("enabled", cfg.Quota.Enabled),
		slog.Int("limit", cfg.Quota.Limit),
		slog.Duration("window", cfg.Quota.Window),
		slog.Any("paths", cfg.Quota.Paths))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// openStores usa Redis quando REDIS_ADDR está definido; caso contrário, o
// store em memória (um único processo).
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (bldomain.Store, bldomain.StatsStore, func(), error) {
	if cfg.Redis.Addr == "" {
		mem := blinfra.NewMemoryStore()
		mem.StartJanitor(ctx)
		logger.Warn("REDIS_ADDR not set, using in-memory blacklist store")
		return mem, nil, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := blinfra.NewRedisStore(rdb)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err := store.Ping(pingCtx)
	cancel()
	if err != nil {
		_ = rdb.Close()
		return nil, nil, nil, err
	}

	var stats bldomain.StatsStore
	if cfg.Stats.Enabled {
		stats = blinfra.NewRedisStatsStore(
			rdb,
			blinfra.WithStatsPrefix(cfg.Stats.Prefix),
			blinfra.WithStatsTTL(cfg.Stats.TTL),
			blinfra.WithStatsBucket(cfg.Stats.Bucket),
			blinfra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		)
	}
	return store, stats, func() { _ = rdb.Close() }, nil
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}
