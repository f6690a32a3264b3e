package recovery

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Call while the breaker is rejecting
// calls and the recovery timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("recovery: circuit breaker is open")

// CircuitState is the tri-state mode of a circuit breaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker guards a failure-prone operation. After
// failureThreshold consecutive failures it rejects calls for
// recoveryTimeout, then allows a single trial call.
type CircuitBreaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration

	mu           sync.Mutex
	failureCount int
	lastFailure  time.Time
	state        CircuitState

	// now is indirected for deterministic tests.
	now func() time.Time
}

// NewCircuitBreaker creates a breaker in the CLOSED state.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
}

// Call executes fn under circuit breaker protection. While OPEN it
// returns ErrCircuitOpen without invoking fn, unless the recovery
// timeout since the last failure has elapsed, in which case the breaker
// moves to HALF_OPEN and attempts exactly one trial. A successful trial
// closes the breaker and resets the failure count; a failed trial
// returns it to OPEN.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) > cb.recoveryTimeout {
			cb.state = StateHalfOpen
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	trial := cb.state == StateHalfOpen
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failureCount++
		cb.lastFailure = cb.now()
		if cb.failureCount >= cb.failureThreshold {
			cb.state = StateOpen
		}
		return err
	}

	if trial {
		cb.state = StateClosed
		cb.failureCount = 0
	}
	return nil
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the current consecutive failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}
