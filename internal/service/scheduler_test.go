package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/waitroom"
)

func TestScheduler_TickOnEmptyRoomIsNoop(t *testing.T) {
	store := waitroom.NewMemoryStore()
	s := NewScheduler(testQueueConfig(), store, zap.NewNop())

	keys, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestScheduler_TickPromotesLowestRanked(t *testing.T) {
	ctx := context.Background()
	store := waitroom.NewMemoryStore()
	cfg := testQueueConfig()
	cfg.BatchSize = 2
	s := NewScheduler(cfg, store, zap.NewNop())

	require.NoError(t, store.Insert(ctx, "s:1:late", 300))
	require.NoError(t, store.Insert(ctx, "s:1:first", 100))
	require.NoError(t, store.Insert(ctx, "s:1:second", 200))

	keys, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s:1:first", "s:1:second"}, keys)

	for _, k := range keys {
		ok, err := store.IsEligible(ctx, k)
		require.NoError(t, err)
		assert.True(t, ok)
		_, err = store.Rank(ctx, k)
		assert.ErrorIs(t, err, waitroom.ErrNotFound)
	}
	rank, err := store.Rank(ctx, "s:1:late")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rank)
}

func TestScheduler_TickPropagatesStoreError(t *testing.T) {
	s := NewScheduler(testQueueConfig(), brokenStore{}, zap.NewNop())
	_, err := s.Tick(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := waitroom.NewMemoryStore()
	require.NoError(t, store.Insert(ctx, "s:1:a", 1))
	cfg := testQueueConfig()
	cfg.PromotionInterval = 5 * time.Millisecond
	s := NewScheduler(cfg, store, zap.NewNop())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		ok, _ := store.IsEligible(context.Background(), "s:1:a")
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestExpirer_SweepDropsStaleTokens(t *testing.T) {
	ctx := context.Background()
	store := waitroom.NewMemoryStore()
	clock := newFakeClock()
	e := NewExpirer(testQueueConfig(), store, zap.NewNop())
	e.now = clock.Now

	require.NoError(t, store.Insert(ctx, "s:1:old", 1))
	_, err := store.Promote(ctx, 1, clock.Now())
	require.NoError(t, err)

	clock.Advance(4 * time.Minute)
	require.NoError(t, store.Insert(ctx, "s:1:new", 2))
	_, err = store.Promote(ctx, 1, clock.Now())
	require.NoError(t, err)

	n, err := e.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(2 * time.Minute)
	n, err = e.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := store.IsEligible(ctx, "s:1:old")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.IsEligible(ctx, "s:1:new")
	require.NoError(t, err)
	assert.True(t, ok)
}
