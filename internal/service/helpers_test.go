package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/flash-sale/internal/config"
	"github.com/iliyamo/flash-sale/internal/queue"
	"github.com/iliyamo/flash-sale/internal/waitroom"
)

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		MaxSize:           10000,
		BatchSize:         10,
		PromotionInterval: time.Second,
		EligibleTTL:       5 * time.Minute,
		ExpiryInterval:    30 * time.Second,
		PublishTimeout:    50 * time.Millisecond,
		Breaker: config.BreakerConfig{
			WindowSize:           5,
			FailureRateThreshold: 50,
			OpenTimeout:          30 * time.Second,
			HalfOpenProbes:       3,
		},
	}
}

// fakePublisher stands in for the broker.  With sink set it plays the
// consumer too, inserting each published message straight away.
type fakePublisher struct {
	mu    sync.Mutex
	err   error
	block bool
	calls int
	msgs  []queue.EntryMessage
	sink  waitroom.Store
}

func (f *fakePublisher) Publish(ctx context.Context, msg queue.EntryMessage) error {
	f.mu.Lock()
	f.calls++
	err, block := f.err, f.block
	if err == nil && !block {
		f.msgs = append(f.msgs, msg)
	}
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	if f.sink != nil {
		return f.sink.Insert(ctx, msg.Key(), msg.Timestamp)
	}
	return nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakePublisher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// brokenStore fails every call.
type brokenStore struct{ waitroom.Store }

var errStoreDown = errors.New("store down")

func (brokenStore) Size(context.Context) (int64, error) { return 0, errStoreDown }
func (brokenStore) Insert(context.Context, string, int64) error { return errStoreDown }
func (brokenStore) IsEligible(context.Context, string) (bool, error) { return false, errStoreDown }
func (brokenStore) Rank(context.Context, string) (int64, error) { return 0, errStoreDown }
func (brokenStore) Promote(context.Context, int, time.Time) ([]string, error) {
	return nil, errStoreDown
}

type fixedSale bool

func (f fixedSale) IsActive(context.Context) bool { return bool(f) }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
