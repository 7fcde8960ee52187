package infra

import (
	"context"
	"strconv"
	"sync"
	"time"

	"library-gateway/middleware/blacklist/domain"
)

// MemoryStore é um store em memória com semântica de TTL igual à do Redis.
// Útil para testes e para uma instância única; não compartilha estado entre
// processos.
type MemoryStore struct {
	mu           sync.Mutex
	entries      map[string]*memEntry
	now          func() time.Time
	cleanupEvery time.Duration
}

type memEntry struct {
	value     int64
	expiresAt time.Time // zero = não expira
}

type MemoryStoreOption func(*MemoryStore)

// WithClock troca time.Now (testes avançam o relógio manualmente).
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func WithCleanupEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:      make(map[string]*memEntry),
		now:          time.Now,
		cleanupEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.Store = (*MemoryStore)(nil)

// live devolve a entrada se existir e não estiver expirada. Chamar com mu.
func (s *MemoryStore) live(key string, now time.Time) (*memEntry, bool) {
	ent, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !ent.expiresAt.IsZero() && !now.Before(ent.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return ent, true
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeErr("exists", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(key, s.now())
	return ok, nil
}

func (s *MemoryStore) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeErr("setnx", err)
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key, now); ok {
		return false, nil
	}
	s.entries[key] = &memEntry{value: 1, expiresAt: expiry(now, ttl)}
	return true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return storeErr("set", err)
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memEntry{value: 1, expiresAt: expiry(now, ttl)}
	return nil
}

func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr("incr", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incrLocked(key, s.now()), nil
}

func (s *MemoryStore) incrLocked(key string, now time.Time) int64 {
	ent, ok := s.live(key, now)
	if !ok {
		ent = &memEntry{}
		s.entries[key] = ent
	}
	ent.value++
	return ent.value
}

func (s *MemoryStore) ExpireNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeErr("expirenx", err)
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.live(key, now)
	if !ok || !ent.expiresAt.IsZero() {
		return false, nil
	}
	ent.expiresAt = expiry(now, ttl)
	return true, nil
}

func (s *MemoryStore) IncrAndReset(ctx context.Context, key string, threshold int64) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, storeErr("incr-reset", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.incrLocked(key, s.now())
	if n >= threshold {
		s.entries[key].value = 0
		return n, true, nil
	}
	return n, false, nil
}

func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr("ttl", err)
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.live(key, now)
	if !ok || ent.expiresAt.IsZero() {
		return 0, nil
	}
	return ent.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Counter(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr("get", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.live(key, s.now())
	if !ok {
		return 0, nil
	}
	return ent.value, nil
}

// Len devolve o número de chaves vivas.
func (s *MemoryStore) Len() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if _, ok := s.live(k, now); ok {
			n++
		}
	}
	return n
}

// Cleanup remove as chaves expiradas.
func (s *MemoryStore) Cleanup() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		s.live(k, now)
	}
}

// StartJanitor inicia uma goroutine que remove chaves expiradas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func storeErr(op string, err error) error {
	return &opError{op: op, err: err}
}

type opError struct {
	op  string
	err error
}

func (e *opError) Error() string {
	return "blacklist store " + e.op + ": " + e.err.Error()
}

func (e *opError) Unwrap() []error { return []error{domain.ErrStoreUnavailable, e.err} }

// formatMillis formata ttl para o ARGV dos scripts (PEXPIRE).
func formatMillis(ttl time.Duration) string {
	return strconv.FormatInt(ttl.Milliseconds(), 10)
}
