package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/breaker"
	"github.com/iliyamo/flash-sale/internal/config"
	"github.com/iliyamo/flash-sale/internal/queue"
	"github.com/iliyamo/flash-sale/internal/waitroom"
)

// EntryPublisher hands an admission to the ingestion buffer.  Publish must
// return only once the buffer has durably accepted the message.
type EntryPublisher interface {
	Publish(ctx context.Context, msg queue.EntryMessage) error
}

// QueueEntry is returned to a client that joined the queue.  Position and
// EstimatedWait are advisory.
type QueueEntry struct {
	Token         string `json:"token"`
	ProductID     uint64 `json:"product_id"`
	Position      int64  `json:"position"`
	EstimatedWait int64  `json:"estimated_wait_seconds"`
}

// QueueStatus is the result of polling a token.
type QueueStatus struct {
	Position      int64 `json:"position"`
	EstimatedWait int64 `json:"estimated_wait_seconds"`
	CanPurchase   bool  `json:"can_purchase"`
	Expired       bool  `json:"expired"`
}

// AdmissionService is the admission gate and the status query.  Entries go
// through the ingestion buffer behind a circuit breaker; whenever the
// buffer is skipped or fails, the entry is written to the waiting room
// directly with the same key and score.
type AdmissionService struct {
	cfg     config.QueueConfig
	store   waitroom.Store
	pub     EntryPublisher
	breaker *breaker.Breaker
	log     *zap.Logger
	now     func() time.Time
}

// AdmissionOption customises an AdmissionService.
type AdmissionOption func(*AdmissionService)

// WithClock replaces time.Now for the admission timestamp and the breaker.
func WithClock(now func() time.Time) AdmissionOption {
	return func(s *AdmissionService) { s.now = now }
}

func NewAdmissionService(cfg config.QueueConfig, store waitroom.Store, pub EntryPublisher, log *zap.Logger, opts ...AdmissionOption) *AdmissionService {
	s := &AdmissionService{cfg: cfg, store: store, pub: pub, log: log.Named("admission"), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.breaker = breaker.New("queue-entry-publisher", breaker.Config{
		WindowSize:           cfg.Breaker.WindowSize,
		FailureRateThreshold: cfg.Breaker.FailureRateThreshold,
		OpenTimeout:          cfg.Breaker.OpenTimeout,
		HalfOpenProbes:       cfg.Breaker.HalfOpenProbes,
		Now:                  s.now,
		OnStateChange: func(t breaker.Transition) {
			s.log.Warn("circuit breaker state change",
				zap.String("breaker", t.Name),
				zap.Stringer("from", t.From),
				zap.Stringer("to", t.To))
		},
	})
	return s
}

// Breaker exposes the publish breaker for health reporting.
func (s *AdmissionService) Breaker() *breaker.Breaker { return s.breaker }

// EnterQueue admits sessionID for productID and returns its token.
func (s *AdmissionService) EnterQueue(ctx context.Context, sessionID string, productID uint64) (QueueEntry, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || productID == 0 {
		return QueueEntry{}, ErrInvalidInput
	}

	size, err := s.store.Size(ctx)
	if err != nil {
		s.log.Error("waiting room size check failed", zap.Error(err))
		return QueueEntry{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if size >= s.cfg.MaxSize {
		return QueueEntry{}, ErrQueueFull
	}

	msg := queue.EntryMessage{
		SessionID:  sessionID,
		ResourceID: productID,
		Token:      uuid.NewString(),
		Timestamp:  s.now().UnixMilli(),
	}
	if err := s.publish(ctx, msg); err != nil {
		s.log.Warn("buffer publish skipped, inserting directly",
			zap.String("session_id", sessionID), zap.Uint64("product_id", productID), zap.Error(err))
		if err := s.store.Insert(ctx, msg.Key(), msg.Timestamp); err != nil {
			s.log.Error("fallback insert failed", zap.String("session_id", sessionID), zap.Error(err))
			return QueueEntry{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	pos := size + 1
	return QueueEntry{
		Token:         msg.Token,
		ProductID:     productID,
		Position:      pos,
		EstimatedWait: s.estimateWait(pos),
	}, nil
}

func (s *AdmissionService) publish(ctx context.Context, msg queue.EntryMessage) error {
	if s.pub == nil {
		return errBufferUnavailable
	}
	if err := s.breaker.Allow(); err != nil {
		return err
	}
	pctx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()
	err := s.pub.Publish(pctx, msg)
	s.breaker.Record(err == nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errBufferUnavailable, err)
	}
	return nil
}

// QueueStatus reports where a token stands.  Eligibility wins over rank;
// a token found in neither structure is expired.
func (s *AdmissionService) QueueStatus(ctx context.Context, sessionID, token string, productID uint64) (QueueStatus, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(token) == "" || productID == 0 {
		return QueueStatus{}, ErrInvalidInput
	}
	key := waitroom.Key(sessionID, productID, token)

	ok, err := s.store.IsEligible(ctx, key)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ok {
		return QueueStatus{CanPurchase: true}, nil
	}

	rank, err := s.store.Rank(ctx, key)
	if errors.Is(err, waitroom.ErrNotFound) {
		return QueueStatus{Expired: true}, nil
	}
	if err != nil {
		return QueueStatus{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	pos := rank + 1
	return QueueStatus{Position: pos, EstimatedWait: s.estimateWait(pos)}, nil
}

// estimateWait converts a position into seconds: one promotion tick per
// batch, rounded up.
func (s *AdmissionService) estimateWait(pos int64) int64 {
	return estimateWait(pos, s.cfg.BatchSize, s.cfg.PromotionInterval)
}

func estimateWait(pos int64, batch int, period time.Duration) int64 {
	if pos <= 0 || batch <= 0 {
		return 0
	}
	ticks := (pos + int64(batch) - 1) / int64(batch)
	return int64(math.Ceil((time.Duration(ticks) * period).Seconds()))
}
