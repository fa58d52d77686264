// Package resilience provides circuit breaker and provider failover
// primitives for the cloud services the copilot depends on.
//
// The central type is [CircuitBreaker], a three-state breaker
// (closed → open → half-open) that stops a flapping STT or LLM backend from
// dragging down every utterance. [FallbackGroup] composes multiple instances
// of any provider type with per-entry breakers so a failing primary is
// bypassed in favour of healthy fallbacks.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [CircuitBreaker.Do] while the breaker is open
// and the cooldown has not elapsed.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards all calls.
	StateClosed State = iota

	// StateOpen rejects calls immediately with [ErrBreakerOpen] until the
	// cooldown elapses.
	StateOpen

	// StateHalfOpen admits a limited number of probe calls; success closes
	// the breaker, any failure re-opens it.
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

// BreakerConfig holds tuning knobs for a [CircuitBreaker]. Zero values select
// the defaults noted per field.
type BreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// FailureLimit is the consecutive-failure count that trips the breaker.
	// Default: 5.
	FailureLimit int

	// Cooldown is how long the breaker stays open before probing.
	// Default: 30s.
	Cooldown time.Duration

	// ProbeLimit caps probe calls in the half-open state. Default: 3.
	ProbeLimit int
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	name         string
	failureLimit int
	cooldown     time.Duration
	probeLimit   int

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probes      int
	probeFails  int
}

// NewCircuitBreaker creates a breaker from cfg, filling in defaults.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureLimit <= 0 {
		cfg.FailureLimit = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeLimit <= 0 {
		cfg.ProbeLimit = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		failureLimit: cfg.FailureLimit,
		cooldown:     cfg.Cooldown,
		probeLimit:   cfg.ProbeLimit,
	}
}

// Do runs fn if the breaker allows it. While open it returns [ErrBreakerOpen]
// without calling fn; in the half-open state only a bounded number of probes
// get through.
func (cb *CircuitBreaker) Do(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.cooldown {
			cb.mu.Unlock()
			return ErrBreakerOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeFails = 0
		slog.Info("breaker half-open, probing", "breaker", cb.name)

	case StateHalfOpen:
		if cb.probes >= cb.probeLimit {
			cb.mu.Unlock()
			return ErrBreakerOpen
		}
	}

	probing := cb.state == StateHalfOpen
	if probing {
		cb.probes++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch {
	case err == nil:
		cb.onSuccess(probing)
	case errors.Is(err, context.Canceled):
		// A cancelled caller says nothing about backend health; the call
		// does not count either way.
		if probing {
			cb.probes--
		}
	default:
		cb.onFailure(probing)
	}
	return err
}

// onFailure updates failure accounting. Caller holds cb.mu.
func (cb *CircuitBreaker) onFailure(probing bool) {
	cb.lastFailure = time.Now()

	if probing {
		cb.probeFails++
		// One failed probe re-opens immediately.
		cb.state = StateOpen
		cb.failures = cb.failureLimit
		slog.Warn("breaker re-opened after failed probe", "breaker", cb.name)
		return
	}

	cb.failures++
	if cb.failures >= cb.failureLimit {
		cb.state = StateOpen
		slog.Warn("breaker opened", "breaker", cb.name, "failures", cb.failures)
	}
}

// onSuccess updates success accounting. Caller holds cb.mu.
func (cb *CircuitBreaker) onSuccess(probing bool) {
	if probing {
		if cb.probes-cb.probeFails >= cb.probeLimit {
			cb.state = StateClosed
			cb.failures = 0
			cb.probes = 0
			cb.probeFails = 0
			slog.Info("breaker closed after successful probes", "breaker", cb.name)
		}
		return
	}
	cb.failures = 0
}

// State reports the breaker's current state. An open breaker whose cooldown
// has elapsed reports half-open; the actual transition happens on the next Do.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.probeFails = 0
}
