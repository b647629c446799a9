// Package resilience provides circuit breaking and retry with backoff for
// calls to external dependencies (websites, datastores, APIs).
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is the current mode of a circuit breaker.
type State int

const (
	// StateClosed is normal operation; calls flow through.
	StateClosed State = iota
	// StateOpen rejects calls immediately after repeated failures.
	StateOpen
	// StateHalfOpen lets probe calls through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when a call is rejected because the circuit is open and
// no fallback was supplied.
var ErrOpen = eris.New("circuit open")

// BreakerConfig controls circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Default 5.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before a probe is
	// allowed. Default 30s.
	ResetTimeout time.Duration
	// HalfOpenSuccesses is the consecutive successes required in half-open
	// state before the circuit closes again. Default 2.
	HalfOpenSuccesses int
	// OnStateChange, when set, observes transitions.
	OnStateChange func(name string, from, to State)
}

// DefaultBreakerConfig returns the standard breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

// Breaker is a circuit breaker for a single named dependency.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu                sync.Mutex
	state             State
	failures          int
	halfOpenSuccesses int
	openedAt          time.Time

	nowFunc func() time.Time
}

// NewBreaker creates a breaker for the named dependency.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = 2
	}
	return &Breaker{name: name, cfg: cfg, state: StateClosed, nowFunc: time.Now}
}

// Execute runs fn through the breaker. When the circuit is open it calls
// fallback if one is given, otherwise returns ErrOpen.
func (b *Breaker) Execute(ctx context.Context, fn, fallback func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		if fallback != nil {
			return fallback(ctx)
		}
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// State returns the effective state, accounting for reset-timeout expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.nowFunc().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.nowFunc().Sub(b.openedAt) >= b.cfg.ResetTimeout {
			b.transition(StateHalfOpen)
			return nil
		}
		return ErrOpen
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		switch b.state {
		case StateHalfOpen:
			b.halfOpenSuccesses++
			if b.halfOpenSuccesses >= b.cfg.HalfOpenSuccesses {
				b.transition(StateClosed)
				b.failures = 0
				b.halfOpenSuccesses = 0
			}
		case StateClosed:
			b.failures = 0
		}
		return
	}

	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.openedAt = b.nowFunc()
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		// Any half-open failure reopens immediately.
		b.openedAt = b.nowFunc()
		b.halfOpenSuccesses = 0
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// BreakerSet is a registry of per-dependency breakers. It is owned by its
// creator and injected where needed, never package-global, so tests and
// parallel processors stay isolated.
type BreakerSet struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      BreakerConfig
}

// NewBreakerSet creates an empty registry with shared tuning.
func NewBreakerSet(cfg BreakerConfig) *BreakerSet {
	return &BreakerSet{breakers: make(map[string]*Breaker), cfg: cfg}
}

// Get returns the breaker for the named dependency, creating it on first use.
func (s *BreakerSet) Get(name string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[name]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.breakers[name]; ok {
		return b
	}
	b = NewBreaker(name, s.cfg)
	s.breakers[name] = b
	return b
}

// States returns a snapshot of every breaker's state.
func (s *BreakerSet) States() map[string]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]State, len(s.breakers))
	for name, b := range s.breakers {
		out[name] = b.State()
	}
	return out
}
