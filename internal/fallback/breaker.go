// Package fallback orchestrates resilient tool execution: response cache,
// circuit breaker, bounded retry with exponential backoff, and alternate
// operations, applied in a fixed order.
package fallback

import (
	"sync"
	"time"
)

// State is a circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// GaugeValue maps the state onto the metric encoding (0=closed, 1=half_open,
// 2=open).
func (s State) GaugeValue() float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}

// Breaker is a circuit breaker guarding one tool. Transitions are restricted
// to closed->open, open->half_open, half_open->closed, and half_open->open.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	threshold int
	recovery  time.Duration
	openedAt  time.Time
	probing   bool
}

// NewBreaker creates a closed breaker that opens after threshold consecutive
// failures and probes again after the recovery timeout.
func NewBreaker(threshold int, recovery time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		state:     StateClosed,
		threshold: threshold,
		recovery:  recovery,
	}
}

// Allow reports whether a call may proceed at the given instant. When the
// recovery timeout has elapsed on an open breaker, it moves to half-open and
// admits exactly one probe; concurrent callers wait for the probe's outcome.
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if now.Sub(b.openedAt) >= b.recovery {
			b.state = StateHalfOpen
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// RecordSuccess resets the failure count. A half-open breaker closes.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
}

// RecordFailure counts a failure at the given instant. A closed breaker opens
// once the threshold is reached; a half-open breaker reopens immediately.
func (b *Breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = now
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = StateOpen
			b.openedAt = now
		}
	}
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
