package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iliyamo/flash-sale/internal/config"
	"github.com/iliyamo/flash-sale/internal/waitroom"
)

// Inserter is the part of the waiting room the consumer writes to.
type Inserter interface {
	Insert(ctx context.Context, key string, score int64) error
}

// Consumer drains the partition queues into the waiting room.  Each
// partition is consumed by a single goroutine with prefetch 1 and an
// exclusive consumer, so messages of one product are applied strictly in
// publish order even when several service instances are running: the
// instance that holds a partition consumes it, the others retry and take
// over when it goes away.
//
// Messages are acknowledged only after the insert succeeded.  A crash
// between dequeue and insert leads to redelivery, which is safe because
// waiting room inserts are idempotent.
type Consumer struct {
	cfg   config.RabbitConfig
	store Inserter
	log   *zap.Logger

	retryDelay time.Duration
}

// NewConsumer returns a Consumer writing into store.
func NewConsumer(cfg config.RabbitConfig, store Inserter, log *zap.Logger) *Consumer {
	return &Consumer{cfg: cfg, store: store, log: log.Named("consumer"), retryDelay: 500 * time.Millisecond}
}

// Run consumes every partition until ctx is cancelled.  It reconnects with
// exponential backoff and only returns once all partition loops stopped.
func (c *Consumer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for p := 0; p < c.cfg.Partitions; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			c.runPartition(ctx, p)
		}(p)
	}
	wg.Wait()
	return ctx.Err()
}

func (c *Consumer) runPartition(ctx context.Context, p int) {
	log := c.log.With(zap.Int("partition", p))
	var limiter *rate.Limiter
	if c.cfg.ConsumerRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.cfg.ConsumerRate), 1)
	}
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{Dial: dialWithin(dialTimeout)})
		if err != nil {
			log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn, p, limiter)
		_ = conn.Close()
		if err == nil || ctx.Err() != nil {
			return
		}
		log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, p int, limiter *rate.Limiter) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if err := declareTopology(ch, c.cfg); err != nil {
		return err
	}
	name := partitionName(c.cfg.QueuePrefix, p)
	msgs, err := ch.Consume(
		name,  // queue
		"",    // consumer tag
		false, // autoAck: ack after the waiting room insert
		true,  // exclusive: one consumer per partition keeps order
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", name, err)
	}
	c.log.Info("consuming partition", zap.String("queue", name))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					_ = d.Nack(false, true)
					return nil
				}
			}
			c.handle(ctx, d)
		}
	}
}

// handle applies one delivery.  Undecodable payloads are dropped (nack
// without requeue) because redelivering them can never succeed; store
// failures are requeued after a short pause so that a Redis outage does not
// spin the partition.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var msg EntryMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.log.Error("dropping undecodable entry", zap.Error(err), zap.ByteString("body", d.Body))
		_ = d.Nack(false, false)
		return
	}
	if err := msg.Validate(); err != nil {
		c.log.Error("dropping invalid entry", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := c.store.Insert(ctx, msg.Key(), msg.Timestamp); err != nil {
		c.log.Error("waiting room insert failed, requeueing",
			zap.String("session_id", msg.SessionID), zap.Uint64("product_id", msg.ResourceID), zap.Error(err))
		sleep(ctx, c.retryDelay)
		_ = d.Nack(false, true)
		return
	}
	if err := d.Ack(false); err != nil {
		// The insert is idempotent; a lost ack only causes a harmless redelivery.
		c.log.Warn("ack failed", zap.Error(err))
		return
	}
	c.log.Debug("entry inserted", zap.String("session_id", msg.SessionID), zap.Uint64("product_id", msg.ResourceID), zap.String("token", msg.Token))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ Inserter = (waitroom.Store)(nil)
