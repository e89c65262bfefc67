package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is rejecting all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the dependency recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
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

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the guarded dependency in errors and metrics.
	Name string

	// FailureThreshold is the number of consecutive failures that opens
	// the circuit while closed.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// that closes the circuit.
	// Default: 1
	SuccessThreshold int

	// Timeout is the per-call time limit. A call that exceeds it is booked
	// as a timeout failure; the operation's context is cancelled but its
	// completion is not awaited, and a late result is discarded.
	// Default: 30 seconds
	Timeout time.Duration

	// ResetTimeout is how long the circuit stays open before allowing a
	// trial call.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// IsFailure classifies a completed call. It receives the call's error
	// (possibly nil) and reports whether it counts as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// Metrics, when set, records calls and state transitions.
	Metrics *Metrics

	// Clock supplies the time source. Default: wall clock.
	Clock Clock
}

// StateChangeFunc observes circuit state transitions. Observers are invoked
// synchronously while the breaker lock is held and must not call back into
// the breaker.
type StateChangeFunc func(from, to State)

// CircuitBreaker implements the circuit breaker pattern. Safe for
// concurrent use.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	clock  Clock

	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	totalCalls      int64
	lastFailureTime time.Time
	nextAttemptTime time.Time
	observers       []StateChangeFunc
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	clock := config.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &CircuitBreaker{
		config: config,
		clock:  clock,
		state:  StateClosed,
	}
}

// Execute runs the operation through the circuit breaker. While the circuit
// is open, the operation is not invoked and ErrCircuitOpen is returned.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	return cb.ExecuteWithFallback(ctx, op, nil)
}

// ExecuteWithFallback runs the operation through the circuit breaker. While
// the circuit is open, the operation is not invoked; the fallback runs
// instead when supplied, otherwise ErrCircuitOpen is returned.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, op, fallback func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		if fallback != nil {
			return fallback(ctx)
		}
		return err
	}

	start := cb.clock.Now()
	err := cb.invoke(ctx, op)
	cb.afterCall(ctx, err, cb.clock.Now().Sub(start))
	return err
}

// OnStateChange registers an observer invoked synchronously on every state
// transition. Same-state writes do not notify.
func (cb *CircuitBreaker) OnStateChange(fn StateChangeFunc) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.observers = append(cb.observers, fn)
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// CircuitBreakerStats is a snapshot of breaker counters.
type CircuitBreakerStats struct {
	Name            string    `json:"name,omitempty"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	Successes       int       `json:"successes"`
	TotalCalls      int64     `json:"total_calls"`
	LastFailureTime time.Time `json:"last_failure_time"`
	NextAttemptTime time.Time `json:"next_attempt_time"`
}

// Stats returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		Name:            cb.config.Name,
		State:           cb.currentStateLocked().String(),
		Failures:        cb.failures,
		Successes:       cb.successes,
		TotalCalls:      cb.totalCalls,
		LastFailureTime: cb.lastFailureTime,
		NextAttemptTime: cb.nextAttemptTime,
	}
}

// Reset forces the circuit to closed with zeroed counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setStateLocked(StateClosed)
}

// ForceOpen forces the circuit open with a fresh next-attempt time.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.nextAttemptTime = cb.clock.Now().Add(cb.config.ResetTimeout)
	cb.setStateLocked(StateOpen)
}

// beforeCall admits or rejects a call, promoting open to half-open once the
// cooldown has elapsed. The promoting call is allowed through as a trial.
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalCalls++

	if cb.currentStateLocked() == StateOpen {
		return &CircuitOpenError{
			Name:       cb.config.Name,
			RetryAfter: cb.nextAttemptTime.Sub(cb.clock.Now()),
		}
	}
	return nil
}

// invoke races the operation against the per-call timeout. The buffered
// channel lets a late result be dropped rather than leaking the goroutine.
func (cb *CircuitBreaker) invoke(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, cb.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

func (cb *CircuitBreaker) afterCall(ctx context.Context, err error, duration time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	isFailure := cb.config.IsFailure(err)

	switch cb.state {
	case StateClosed:
		if isFailure {
			cb.failures++
			cb.lastFailureTime = cb.clock.Now()
			if cb.failures >= cb.config.FailureThreshold {
				cb.nextAttemptTime = cb.clock.Now().Add(cb.config.ResetTimeout)
				cb.setStateLocked(StateOpen)
			}
		} else {
			cb.failures = 0
		}

	case StateHalfOpen:
		if isFailure {
			// Failed trial, back to open with a fresh cooldown.
			cb.lastFailureTime = cb.clock.Now()
			cb.nextAttemptTime = cb.clock.Now().Add(cb.config.ResetTimeout)
			cb.setStateLocked(StateOpen)
		} else {
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.setStateLocked(StateClosed)
			}
		}
	}

	if cb.config.Metrics != nil {
		cb.config.Metrics.recordCall(ctx, cb.config.Name, duration, isFailure)
	}
}

// currentStateLocked lazily promotes an elapsed open circuit to half-open.
func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && !cb.clock.Now().Before(cb.nextAttemptTime) {
		cb.setStateLocked(StateHalfOpen)
	}
	return cb.state
}

// setStateLocked transitions the circuit, zeroing the consecutive counters
// and notifying observers. Same-state writes are no-ops.
func (cb *CircuitBreaker) setStateLocked(to State) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.failures = 0
	cb.successes = 0

	for _, fn := range cb.observers {
		fn(from, to)
	}
	if cb.config.Metrics != nil {
		cb.config.Metrics.recordTransition(cb.config.Name, from, to)
	}
}
