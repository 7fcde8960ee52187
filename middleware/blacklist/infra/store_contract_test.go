package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"library-gateway/middleware/blacklist/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory devolve um store vazio e uma função que avança o relógio dele.
type storeFactory func(t *testing.T) (domain.Store, func(time.Duration))

func runStoreContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("SetNXDoesNotExtendTTL", func(t *testing.T) {
		s, advance := newStore(t)

		created, err := s.SetNX(ctx, "temp_blacklist_a", 60*time.Second)
		require.NoError(t, err)
		require.True(t, created)

		advance(30 * time.Second)

		created, err = s.SetNX(ctx, "temp_blacklist_a", 60*time.Second)
		require.NoError(t, err)
		assert.False(t, created)

		ttl, err := s.TTL(ctx, "temp_blacklist_a")
		require.NoError(t, err)
		assert.LessOrEqual(t, ttl, 30*time.Second)

		advance(31 * time.Second)
		ok, err := s.Exists(ctx, "temp_blacklist_a")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SetRefreshesTTL", func(t *testing.T) {
		s, advance := newStore(t)

		require.NoError(t, s.Set(ctx, "was_temp_blacklisted_a", 300*time.Second))
		advance(200 * time.Second)
		require.NoError(t, s.Set(ctx, "was_temp_blacklisted_a", 300*time.Second))
		advance(200 * time.Second)

		ok, err := s.Exists(ctx, "was_temp_blacklisted_a")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ExpireNXOnlyOncePerWindow", func(t *testing.T) {
		s, advance := newStore(t)

		applied, err := s.ExpireNX(ctx, "request_count_a", 60*time.Second)
		require.NoError(t, err)
		assert.False(t, applied, "missing key must not get a TTL")

		n, err := s.Incr(ctx, "request_count_a")
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		applied, err = s.ExpireNX(ctx, "request_count_a", 60*time.Second)
		require.NoError(t, err)
		assert.True(t, applied)

		advance(40 * time.Second)
		_, err = s.Incr(ctx, "request_count_a")
		require.NoError(t, err)
		applied, err = s.ExpireNX(ctx, "request_count_a", 60*time.Second)
		require.NoError(t, err)
		assert.False(t, applied, "window must not slide")

		advance(21 * time.Second)
		n, err = s.Counter(ctx, "request_count_a")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("IncrAndResetTripsExactlyAtThreshold", func(t *testing.T) {
		s, _ := newStore(t)

		var got []int64
		for i := 0; i < 7; i++ {
			n, tripped, err := s.IncrAndReset(ctx, "global_violation_count", 3)
			require.NoError(t, err)
			got = append(got, n)
			assert.Equal(t, n == 3, tripped)
		}
		assert.Equal(t, []int64{1, 2, 3, 1, 2, 3, 1}, got)

		n, err := s.Counter(ctx, "global_violation_count")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("ConcurrentIncrLosesNoUpdates", func(t *testing.T) {
		s, _ := newStore(t)

		const workers = 20
		const perWorker = 25

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					_, err := s.Incr(ctx, "request_count_a")
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		n, err := s.Counter(ctx, "request_count_a")
		require.NoError(t, err)
		assert.Equal(t, int64(workers*perWorker), n)
	})

	t.Run("ConcurrentIncrAndResetTripsOncePerThreshold", func(t *testing.T) {
		s, _ := newStore(t)

		var (
			mu      sync.Mutex
			tripped int
			wg      sync.WaitGroup
		)
		for i := 0; i < 30; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := s.IncrAndReset(ctx, "global_violation_count", 3)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					tripped++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, tripped)
		n, err := s.Counter(ctx, "global_violation_count")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("TTLOfMissingKeyIsZero", func(t *testing.T) {
		s, _ := newStore(t)

		ttl, err := s.TTL(ctx, "nope")
		require.NoError(t, err)
		assert.Zero(t, ttl)

		ok, err := s.Exists(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
