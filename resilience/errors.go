package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when a call is rejected because the
	// circuit breaker is open and no fallback was supplied.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrTimeout is returned when a protected operation exceeds the
	// breaker's per-call timeout. The operation itself is not interrupted
	// beyond cancellation of its context; a late result is discarded.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrRetriesExhausted is returned when the retry budget is exhausted.
	ErrRetriesExhausted = errors.New("resilience: retries exhausted")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")
)

// CircuitOpenError is the typed rejection returned for short-circuited
// calls. It matches ErrCircuitOpen with errors.Is so callers can branch on
// "protected resource unavailable" versus "operation failed".
type CircuitOpenError struct {
	// Name is the breaker name, if configured.
	Name string

	// RetryAfter is how long until the breaker will allow a trial call.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("resilience: circuit breaker %q is open, retry after %v", e.Name, e.RetryAfter)
	}
	return fmt.Sprintf("resilience: circuit breaker is open, retry after %v", e.RetryAfter)
}

// Is reports whether target is ErrCircuitOpen.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// RetriesExceededError wraps the last underlying error after the retry
// budget is exhausted. It matches ErrRetriesExhausted with errors.Is and
// unwraps to the underlying error.
type RetriesExceededError struct {
	// Attempts is the total number of invocations performed.
	Attempts int

	// Err is the error returned by the final attempt.
	Err error
}

// Error implements the error interface.
func (e *RetriesExceededError) Error() string {
	return fmt.Sprintf("resilience: retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the error from the final attempt.
func (e *RetriesExceededError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRetriesExhausted.
func (e *RetriesExceededError) Is(target error) bool {
	return target == ErrRetriesExhausted
}
