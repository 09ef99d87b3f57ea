// Package resilience generalizes the reference system's
// Toolkit/pkg/toolkit/common/ratelimit.CircuitBreaker and
// Toolkit/Commons/http retrying client into a named Policy/Registry pair
// that every outbound dependency call in this system runs through.
package resilience

import (
	"sync"
	"time"
)

// BreakerState is one of the three circuit breaker states.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
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

// CircuitBreaker is a classic three-state breaker: it trips to Open after
// FailureThreshold consecutive failures, stays Open for BreakDuration, then
// allows exactly one HalfOpen probe before deciding whether to close or
// re-open, mirroring the reference system's breaker.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	breakDuration    time.Duration

	state          BreakerState
	consecutiveFail int
	openedAt       time.Time
	halfOpenInFlight bool
}

// NewCircuitBreaker constructs a breaker starting Closed.
func NewCircuitBreaker(failureThreshold int, breakDuration time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		breakDuration:    breakDuration,
		state:            StateClosed,
	}
}

// Allow reports whether a call may proceed right now, and transitions Open
// to HalfOpen once the break duration has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.breakDuration {
			b.state = StateHalfOpen
			b.halfOpenInFlight = true
			return true
		}
		return false
	case StateHalfOpen:
		// Only the probe that flipped us into HalfOpen may proceed; any
		// concurrent caller is rejected until that probe resolves.
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess reports a successful call outcome.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFail = 0
	b.halfOpenInFlight = false
	b.state = StateClosed
}

// RecordFailure reports a failed call outcome, tripping the breaker open
// when the threshold is reached (immediately, from any state).
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.halfOpenInFlight = false
	if b.state == StateHalfOpen {
		b.open()
		return
	}
	b.consecutiveFail++
	if b.consecutiveFail >= b.failureThreshold {
		b.open()
	}
}

func (b *CircuitBreaker) open() {
	b.state = StateOpen
	b.openedAt = time.Now()
	b.consecutiveFail = b.failureThreshold
}

// State returns the breaker's current state, for health checks and metrics.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
