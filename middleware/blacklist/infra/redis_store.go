package infra

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"library-gateway/middleware/blacklist/domain"

	"github.com/redis/go-redis/v9"
)

var (
	//go:embed scripts/expire_nx.lua
	expireNXSource string
	//go:embed scripts/incr_reset.lua
	incrResetSource string

	expireNXScript  = redis.NewScript(expireNXSource)
	incrResetScript = redis.NewScript(incrResetSource)
)

// RedisStore implementa domain.Store sobre Redis. Todas as mutações são
// comandos únicos (INCR, SET NX PX) ou scripts Lua, então várias instâncias
// do gateway podem compartilhar o mesmo Redis.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

var _ domain.Store = (*RedisStore)(nil)

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, storeErr("exists", err)
	}
	return n > 0, nil
}

func (s *RedisStore) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, storeErr("setnx", err)
	}
	return ok, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, "1", ttl).Err(); err != nil {
		return storeErr("set", err)
	}
	return nil
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, storeErr("incr", err)
	}
	return n, nil
}

func (s *RedisStore) ExpireNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	n, err := expireNXScript.Run(ctx, s.rdb, []string{key}, formatMillis(ttl)).Int64()
	if err != nil {
		return false, storeErr("expirenx", err)
	}
	return n == 1, nil
}

func (s *RedisStore) IncrAndReset(ctx context.Context, key string, threshold int64) (int64, bool, error) {
	vals, err := incrResetScript.Run(ctx, s.rdb, []string{key}, threshold).Slice()
	if err != nil {
		return 0, false, storeErr("incr-reset", err)
	}
	if len(vals) != 2 {
		return 0, false, storeErr("incr-reset", fmt.Errorf("unexpected script reply %v", vals))
	}
	n, ok1 := vals[0].(int64)
	tripped, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return 0, false, storeErr("incr-reset", fmt.Errorf("unexpected script reply %v", vals))
	}
	return n, tripped == 1, nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, storeErr("pttl", err)
	}
	// -1 (sem TTL) e -2 (inexistente) chegam como durações negativas
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *RedisStore) Counter(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("get", err)
	}
	return n, nil
}

// Ping verifica a conexão (usado na inicialização dos binários).
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return storeErr("ping", err)
	}
	return nil
}
