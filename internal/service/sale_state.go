package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const saleActiveKey = "sale:active"

// SaleStateService stores the sale flag in Redis so every instance sees
// the same value.  Toggling the flag changes catalog prices, so it also
// flushes the product response cache.
type SaleStateService struct {
	rdb         redis.UniversalClient
	cachePrefix string
	log         *zap.Logger
}

func NewSaleStateService(rdb redis.UniversalClient, cachePrefix string, log *zap.Logger) *SaleStateService {
	return &SaleStateService{rdb: rdb, cachePrefix: cachePrefix, log: log.Named("sale")}
}

// IsActive reads the flag.  Read failures report false.
func (s *SaleStateService) IsActive(ctx context.Context) bool {
	v, err := s.rdb.Get(ctx, saleActiveKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("sale flag read failed, assuming inactive", zap.Error(err))
		}
		return false
	}
	return v == "true"
}

func (s *SaleStateService) Start(ctx context.Context) error { return s.set(ctx, true) }

func (s *SaleStateService) End(ctx context.Context) error { return s.set(ctx, false) }

func (s *SaleStateService) set(ctx context.Context, active bool) error {
	val := "false"
	if active {
		val = "true"
	}
	if err := s.rdb.Set(ctx, saleActiveKey, val, 0).Err(); err != nil {
		return fmt.Errorf("set sale flag: %w", err)
	}
	n, err := s.InvalidateCache(ctx)
	if err != nil {
		// Stale prices expire with the cache TTL.
		s.log.Warn("product cache invalidation failed", zap.Error(err))
	}
	s.log.Info("sale state changed", zap.Bool("active", active), zap.Int("evicted", n))
	return nil
}

// InvalidateCache deletes every cached product response and returns how
// many keys were removed.
func (s *SaleStateService) InvalidateCache(ctx context.Context) (int, error) {
	if s.cachePrefix == "" {
		return 0, nil
	}
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.cachePrefix+":*", 200).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}
