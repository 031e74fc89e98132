// Package breaker provides a count-based circuit breaker with explicit
// Closed, Open and HalfOpen states.
//
// In Closed state every call is allowed and its outcome is recorded in a
// sliding window of the last WindowSize calls.  Once the window is full and
// the failure rate reaches FailureRateThreshold percent the breaker opens.
// In Open state calls are rejected with ErrOpen until OpenTimeout has
// elapsed, after which the breaker admits HalfOpenProbes trial calls.  Any
// failed probe re-opens the breaker; when every probe succeeds it closes
// again with a fresh window.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Allow while the breaker short-circuits calls.
var ErrOpen = errors.New("breaker: circuit open")

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Transition describes a state change.  It is handed to the OnStateChange
// hook after the breaker lock is released.
type Transition struct {
	Name string
	From State
	To   State
	At   time.Time
}

// Config tunes a Breaker.  Zero values fall back to the defaults noted on
// each field.
type Config struct {
	WindowSize           int           // default 5
	FailureRateThreshold float64       // percent, default 50
	OpenTimeout          time.Duration // default 30s
	HalfOpenProbes       int           // default 3
	Now                  func() time.Time
	OnStateChange        func(Transition)
}

// Counts is a point-in-time snapshot for observability.
type Counts struct {
	State    State
	Calls    int // outcomes currently in the window
	Failures int // failures currently in the window
	Probes   int // half-open probes issued
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name string
	cfg  Config

	mu       sync.Mutex
	state    State
	window   []bool // true = failure
	next     int
	filled   int
	failures int
	openedAt time.Time
	probes   int
	passed   int
}

// New returns a closed breaker.
func New(name string, cfg Config) *Breaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 5
	}
	if cfg.FailureRateThreshold <= 0 || cfg.FailureRateThreshold > 100 {
		cfg.FailureRateThreshold = 50
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{name: name, cfg: cfg, window: make([]bool, cfg.WindowSize)}
}

// Name returns the breaker name used in transitions.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, applying the Open to HalfOpen timeout.
func (b *Breaker) State() State {
	b.mu.Lock()
	tr := b.advanceLocked(b.cfg.Now())
	s := b.state
	b.mu.Unlock()
	b.notify(tr)
	return s
}

// Counts returns a snapshot of the breaker counters.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Counts{State: b.state, Calls: b.filled, Failures: b.failures, Probes: b.probes}
}

// Allow reports whether a call may proceed.  Every nil return must be
// followed by exactly one Record call.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	tr := b.advanceLocked(b.cfg.Now())
	var err error
	switch b.state {
	case Open:
		err = ErrOpen
	case HalfOpen:
		if b.probes >= b.cfg.HalfOpenProbes {
			err = ErrOpen
		} else {
			b.probes++
		}
	}
	b.mu.Unlock()
	b.notify(tr)
	return err
}

// Record reports the outcome of an allowed call.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	now := b.cfg.Now()
	var tr *Transition
	switch b.state {
	case Closed:
		b.pushLocked(!success)
		if b.filled == len(b.window) && b.failureRateLocked() >= b.cfg.FailureRateThreshold {
			tr = b.toLocked(Open, now)
		}
	case HalfOpen:
		if !success {
			tr = b.toLocked(Open, now)
		} else {
			b.passed++
			if b.passed >= b.cfg.HalfOpenProbes {
				tr = b.toLocked(Closed, now)
			}
		}
	case Open:
		// Late outcome of a call allowed before the breaker opened.
	}
	b.mu.Unlock()
	b.notify(tr)
}

// Execute runs fn when the breaker allows it and records the outcome.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	b.Record(err == nil)
	return err
}

func (b *Breaker) pushLocked(failure bool) {
	if b.filled == len(b.window) {
		if b.window[b.next] {
			b.failures--
		}
	} else {
		b.filled++
	}
	b.window[b.next] = failure
	if failure {
		b.failures++
	}
	b.next = (b.next + 1) % len(b.window)
}

func (b *Breaker) failureRateLocked() float64 {
	if b.filled == 0 {
		return 0
	}
	return float64(b.failures) * 100 / float64(b.filled)
}

func (b *Breaker) advanceLocked(now time.Time) *Transition {
	if b.state == Open && !now.Before(b.openedAt.Add(b.cfg.OpenTimeout)) {
		return b.toLocked(HalfOpen, now)
	}
	return nil
}

func (b *Breaker) toLocked(s State, now time.Time) *Transition {
	tr := &Transition{Name: b.name, From: b.state, To: s, At: now}
	b.state = s
	b.probes, b.passed = 0, 0
	switch s {
	case Open:
		b.openedAt = now
	case Closed:
		b.filled, b.next, b.failures = 0, 0, 0
	}
	return tr
}

func (b *Breaker) notify(tr *Transition) {
	if tr != nil && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(*tr)
	}
}
