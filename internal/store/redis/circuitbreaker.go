package redis

import (
	"errors"
	"log"
	"sync"
	"time"
)

// State of the Redis write breaker.
type State int

const (
	StateClosed   State = 0 // writes go to Redis
	StateOpen     State = 1 // writes rejected, BufferedWriter queues them
	StateHalfOpen State = 2 // one trial write allowed through
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

const (
	defaultMaxFailures  = 5
	defaultResetTimeout = 10 * time.Second
)

// CircuitBreaker guards the Redis write path. After maxFailures consecutive
// failed writes it opens and rejects calls for resetTimeout, then allows a
// single trial write. A successful trial closes the breaker, which signals
// the BufferedWriter to flush everything it queued during the outage.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time

	// OnStateChange, if set, is called on every transition. BufferedWriter
	// hooks this to flush on the open -> closed edge.
	OnStateChange func(from, to State)
}

// NewCircuitBreaker creates a breaker. Non-positive arguments fall back to
// 5 failures / 10s, the values tuned for per-candle Redis write volume.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	if resetTimeout <= 0 {
		resetTimeout = defaultResetTimeout
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Execute runs one write through the breaker. Returns ErrCircuitOpen without
// calling fn while the breaker is open and the reset timeout has not elapsed.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.transition(StateHalfOpen)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}

	case StateHalfOpen:
		// the mutex serializes trial writes, one at a time
	}

	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()

		if cb.state == StateHalfOpen {
			cb.transition(StateOpen) // trial write failed
		} else if cb.failures >= cb.maxFailures {
			cb.transition(StateOpen)
		}
		return err
	}

	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
	cb.failures = 0
	return nil
}

// CurrentState returns the breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	log.Printf("[redis] write breaker %s -> %s", from, to)
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

// ErrCircuitOpen is returned while the breaker rejects writes.
var ErrCircuitOpen = errors.New("redis write breaker open")
