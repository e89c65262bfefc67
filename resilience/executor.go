package resilience

import "context"

// Executor composes resilience patterns into one protected-call chain.
type Executor struct {
	bulkhead  *Bulkhead
	breaker   *CircuitBreaker
	fallback  func(context.Context) error
	retry     *RetryManager
	retryOpts []RetryOptions
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.breaker = cb
	}
}

// WithFallback sets the fallback run for short-circuited calls. It only
// takes effect together with WithCircuitBreaker.
func WithFallback(fallback func(context.Context) error) ExecutorOption {
	return func(e *Executor) {
		e.fallback = fallback
	}
}

// WithRetry adds retry logic to the executor.
func WithRetry(rm *RetryManager, opts ...RetryOptions) ExecutorOption {
	return func(e *Executor) {
		e.retry = rm
		e.retryOpts = opts
	}
}

// WithBulkhead adds bulkhead isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
	}
}

// Execute runs the operation through the configured patterns. The chain is
// bulkhead, then circuit breaker, then retry, then the operation: failures
// bubble back through the retry manager, which may re-attempt, and then
// through the breaker, which updates its state and may substitute the
// fallback.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	execute := op

	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.retry.ExecuteWithRetry(ctx, inner, e.retryOpts...)
		}
	}

	if e.breaker != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.breaker.ExecuteWithFallback(ctx, inner, e.fallback)
		}
	}

	if e.bulkhead != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.bulkhead.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}
