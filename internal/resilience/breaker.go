// Package resilience guards outbound HTTP calls. Both the LLM proxy and the
// ops-data service sit behind a circuit breaker so a dead upstream fails
// fast instead of tying up agent invocations until their timeouts.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned instead of calling the upstream while the
// breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Breaker opens after maxFailures consecutive errors and rejects calls for
// timeout. The first call after the cooldown runs as a probe: success closes
// the breaker, failure reopens it immediately.
type Breaker struct {
	mu          sync.Mutex
	maxFailures int
	timeout     time.Duration

	state    state
	failures int
	openedAt time.Time

	now func() time.Time // injectable clock
}

func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{maxFailures: maxFailures, timeout: timeout, now: time.Now}
}

// Execute runs fn unless the breaker is open, and feeds the outcome back
// into the breaker state. The error from fn is passed through unchanged.
func (b *Breaker) Execute(fn func() error) error {
	if !b.admit() {
		return ErrCircuitOpen
	}

	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if b.now().Sub(b.openedAt) < b.timeout {
			return false
		}
		b.state = stateHalfOpen
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.state = stateClosed
		return
	}

	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.maxFailures {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}
