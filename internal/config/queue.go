package config

import "time"

// QueueConfig tunes the admission queue.  BatchSize / PromotionInterval is
// the admitted-purchase throughput, so these two values are the knobs that
// protect the inventory database.
type QueueConfig struct {
	MaxSize           int64         // hard cap on waiting room size
	BatchSize         int           // tokens promoted per tick
	PromotionInterval time.Duration // promotion tick period
	EligibleTTL       time.Duration // how long a promoted token may sit unused
	ExpiryInterval    time.Duration // how often stale eligible tokens are swept
	PublishTimeout    time.Duration // buffer publish deadline before fallback
	Breaker           BreakerConfig
}

// BreakerConfig mirrors the breaker.Config fields so it can be built from env.
type BreakerConfig struct {
	WindowSize           int
	FailureRateThreshold float64
	OpenTimeout          time.Duration
	HalfOpenProbes       int
}

func LoadQueueConfig() QueueConfig {
	c := QueueConfig{
		MaxSize:           int64(envInt("QUEUE_MAX_SIZE", 10000)),
		BatchSize:         envInt("QUEUE_BATCH_SIZE", 10),
		PromotionInterval: envDur("QUEUE_PROMOTION_INTERVAL", time.Second),
		EligibleTTL:       envDur("QUEUE_ELIGIBLE_TTL", 5*time.Minute),
		ExpiryInterval:    envDur("QUEUE_EXPIRY_INTERVAL", 30*time.Second),
		PublishTimeout:    envDur("QUEUE_PUBLISH_TIMEOUT", 3*time.Second),
		Breaker: BreakerConfig{
			WindowSize:           envInt("BREAKER_WINDOW_SIZE", 5),
			FailureRateThreshold: envFloat("BREAKER_FAILURE_RATE", 50),
			OpenTimeout:          envDur("BREAKER_OPEN_TIMEOUT", 30*time.Second),
			HalfOpenProbes:       envInt("BREAKER_HALF_OPEN_PROBES", 3),
		},
	}
	if c.MaxSize < 1 {
		c.MaxSize = 10000
	}
	if c.BatchSize < 1 {
		c.BatchSize = 10
	}
	if c.PromotionInterval <= 0 {
		c.PromotionInterval = time.Second
	}
	return c
}
