package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/config"
	"github.com/iliyamo/flash-sale/internal/waitroom"
)

// Scheduler promotes the head of the waiting room into the eligible set on
// a fixed period.  BatchSize per PromotionInterval is the admitted purchase
// rate, so this loop is what keeps the inventory database at a steady load.
type Scheduler struct {
	store  waitroom.Store
	batch  int
	period time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func NewScheduler(cfg config.QueueConfig, store waitroom.Store, log *zap.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		batch:  cfg.BatchSize,
		period: cfg.PromotionInterval,
		log:    log.Named("scheduler"),
		now:    time.Now,
	}
}

// Run ticks until ctx is cancelled.  A failed tick is logged and retried on
// the next period.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.period)
	defer t.Stop()
	s.log.Info("promotion scheduler started", zap.Int("batch", s.batch), zap.Duration("period", s.period))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("promotion scheduler stopped")
			return
		case <-t.C:
			if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("promotion tick failed", zap.Error(err))
			}
		}
	}
}

// Tick promotes one batch and returns the promoted keys.
func (s *Scheduler) Tick(ctx context.Context) ([]string, error) {
	keys, err := s.store.Promote(ctx, s.batch, s.now())
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		s.log.Debug("promoted tokens", zap.Int("count", len(keys)))
	}
	return keys, nil
}

// Expirer drops eligible tokens that were never used, so abandoned
// promotions stop counting against the purchase rate.
type Expirer struct {
	store    waitroom.Store
	ttl      time.Duration
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewExpirer(cfg config.QueueConfig, store waitroom.Store, log *zap.Logger) *Expirer {
	return &Expirer{
		store:    store,
		ttl:      cfg.EligibleTTL,
		interval: cfg.ExpiryInterval,
		log:      log.Named("expirer"),
		now:      time.Now,
	}
}

func (e *Expirer) Run(ctx context.Context) {
	if e.ttl <= 0 || e.interval <= 0 {
		e.log.Info("eligible expiry disabled")
		return
	}
	t := time.NewTicker(e.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := e.Sweep(ctx); err != nil && ctx.Err() == nil {
				e.log.Error("eligible expiry failed", zap.Error(err))
			}
		}
	}
}

// Sweep removes eligible tokens promoted more than the TTL ago.
func (e *Expirer) Sweep(ctx context.Context) (int64, error) {
	n, err := e.store.ExpireEligible(ctx, e.now().Add(-e.ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.log.Info("expired eligible tokens", zap.Int64("count", n))
	}
	return n, nil
}
