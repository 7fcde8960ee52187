// Package config carrega a configuração dos binários a partir de variáveis de
// ambiente (e de um .env opcional).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"library-gateway/middleware/blacklist/domain"
	rldomain "library-gateway/middleware/ratelimit/domain"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`
	UpstreamURL string `env:"UPSTREAM_URL"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogRequests bool   `env:"LOG_REQUESTS" envDefault:"true"`

	Redis Redis

	Blacklist Blacklist
	Quota     Quota

	KeyHeader string `env:"KEY_HEADER"`
	TrustXFF  bool   `env:"TRUST_XFF" envDefault:"false"`

	Stats Stats
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type Blacklist struct {
	Enabled      bool          `env:"BLACKLIST_ENABLED" envDefault:"true"`
	KeyPrefix    string        `env:"BLACKLIST_KEY_PREFIX"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"250ms"`
	FailOpen     bool          `env:"FAIL_OPEN" envDefault:"true"`

	ViolationThreshold       int64         `env:"VIOLATION_THRESHOLD" envDefault:"5"`
	TempBanTTL               time.Duration `env:"TEMP_BAN_TTL" envDefault:"60s"`
	PermanentBanTTL          time.Duration `env:"PERMANENT_BAN_TTL" envDefault:"300s"`
	WasTempTTL               time.Duration `env:"WAS_TEMP_TTL" envDefault:"300s"`
	WindowTTL                time.Duration `env:"WINDOW_TTL" envDefault:"60s"`
	GlobalViolationThreshold int64         `env:"GLOBAL_VIOLATION_THRESHOLD" envDefault:"3"`
	GlobalBanTTL             time.Duration `env:"GLOBAL_BAN_TTL" envDefault:"24h"`
	CountMode                string        `env:"COUNT_MODE" envDefault:"request"`
}

type Quota struct {
	Enabled bool          `env:"QUOTA_ENABLED" envDefault:"true"`
	Limit   int           `env:"QUOTA_LIMIT" envDefault:"5"`
	Window  time.Duration `env:"QUOTA_WINDOW" envDefault:"60s"`
	// QUOTA_PATHS vazio aplica a cota a todas as rotas.
	Paths []string `env:"QUOTA_PATHS" envSeparator:","`
}

type Stats struct {
	Enabled   bool          `env:"STATS_ENABLED" envDefault:"false"`
	Prefix    string        `env:"STATS_PREFIX" envDefault:"blacklist:stats"`
	TTL       time.Duration `env:"STATS_TTL" envDefault:"24h"`
	Bucket    string        `env:"STATS_BUCKET" envDefault:"minute"`
	TrackKeys bool          `env:"STATS_TRACK_KEYS" envDefault:"false"`
}

// Load lê .env (se existir) e o ambiente, e valida o resultado.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse(env.Options{})
}

// Parse lê apenas o ambiente (ou opts.Environment, nos testes).
func Parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Quota.Paths = cleanPaths(cfg.Quota.Paths)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Blacklist.ViolationThreshold <= 0 {
		errs = append(errs, errors.New("VIOLATION_THRESHOLD must be > 0"))
	}
	if c.Blacklist.GlobalViolationThreshold <= 0 {
		errs = append(errs, errors.New("GLOBAL_VIOLATION_THRESHOLD must be > 0"))
	}
	for name, d := range map[string]time.Duration{
		"TEMP_BAN_TTL":      c.Blacklist.TempBanTTL,
		"PERMANENT_BAN_TTL": c.Blacklist.PermanentBanTTL,
		"WAS_TEMP_TTL":      c.Blacklist.WasTempTTL,
		"WINDOW_TTL":        c.Blacklist.WindowTTL,
		"GLOBAL_BAN_TTL":    c.Blacklist.GlobalBanTTL,
		"STORE_TIMEOUT":     c.Blacklist.StoreTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", name))
		}
	}
	switch domain.CountMode(c.Blacklist.CountMode) {
	case domain.CountRequests, domain.CountViolations:
	default:
		errs = append(errs, fmt.Errorf("COUNT_MODE must be %q or %q", domain.CountRequests, domain.CountViolations))
	}
	if c.Quota.Enabled && (c.Quota.Limit <= 0 || c.Quota.Window <= 0) {
		errs = append(errs, errors.New("QUOTA_LIMIT and QUOTA_WINDOW must be > 0"))
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Redis.Addr) == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when STATS_ENABLED=true"))
	}
	return errors.Join(errs...)
}

func (c Config) Policy() domain.Policy {
	b := c.Blacklist
	return domain.Policy{
		ViolationThreshold:       b.ViolationThreshold,
		TempBanTTL:               b.TempBanTTL,
		PermanentBanTTL:          b.PermanentBanTTL,
		WasTempTTL:               b.WasTempTTL,
		WindowTTL:                b.WindowTTL,
		GlobalViolationThreshold: b.GlobalViolationThreshold,
		GlobalBanTTL:             b.GlobalBanTTL,
		CountMode:                domain.CountMode(b.CountMode),
	}
}

func (c Config) QuotaLimit() rldomain.Quota {
	return rldomain.Quota{Limit: c.Quota.Limit, Window: c.Quota.Window}
}

func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func cleanPaths(in []string) []string {
	out := in[:0]
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
