package resilience

import "context"

// Do executes op through the circuit breaker and returns its result. This
// is a convenience wrapper for operations that return a value.
func Do[T any](ctx context.Context, cb *CircuitBreaker, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// DoWithFallback executes op through the circuit breaker, substituting the
// fallback's result while the circuit is open.
func DoWithFallback[T any](ctx context.Context, cb *CircuitBreaker, op, fallback func(context.Context) (T, error)) (T, error) {
	var result T
	err := cb.ExecuteWithFallback(ctx,
		func(ctx context.Context) error {
			var opErr error
			result, opErr = op(ctx)
			return opErr
		},
		func(ctx context.Context) error {
			var fbErr error
			result, fbErr = fallback(ctx)
			return fbErr
		},
	)
	return result, err
}
