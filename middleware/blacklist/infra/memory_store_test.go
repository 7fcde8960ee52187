package infra

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"library-gateway/middleware/blacklist/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) (domain.Store, func(time.Duration)) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		return NewMemoryStore(WithClock(clock.Now)), clock.Advance
	})
}

func TestMemoryStore_CleanupRemovesExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(WithClock(clock.Now), WithCleanupEvery(0))
	ctx := context.Background()

	_, err := s.SetNX(ctx, "temp_blacklist_a", time.Minute)
	require.NoError(t, err)
	_, err = s.Incr(ctx, "request_count_a")
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	clock.Advance(61 * time.Second)
	s.Cleanup()

	assert.Equal(t, 1, s.Len(), "counter without TTL survives")
}

func TestMemoryStore_CanceledContextIsStoreUnavailable(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Exists(ctx, "blacklist_a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMemoryStore_StartJanitorStopsWithContext(t *testing.T) {
	s := NewMemoryStore(WithCleanupEvery(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	s.StartJanitor(ctx)

	_, err := s.SetNX(context.Background(), "k", time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}
