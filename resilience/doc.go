// Package resilience protects calls to unreliable downstream operations.
//
// The package provides independent building blocks that can be used on
// their own or composed into a protected-call pipeline:
//
//   - CircuitBreaker: a three-state gate that stops calling a failing
//     dependency for a cooldown period, then probes it cautiously before
//     fully resuming. One breaker guards exactly one logical dependency.
//
//   - RetryManager: re-executes a fallible operation according to a
//     backoff policy (fixed, linear, exponential) with optional jitter,
//     and keeps cumulative retry statistics.
//
//   - Bulkhead: limits concurrent operations against one dependency to
//     prevent resource exhaustion.
//
//   - Executor: composes the pieces above into a single call chain.
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    Name:             "billing-api",
//	    FailureThreshold: 5,
//	    ResetTimeout:     30 * time.Second,
//	})
//
//	rm := resilience.NewRetryManager(resilience.RetryOptions{
//	    MaxAttempts: 3,
//	    RetryDelay:  100 * time.Millisecond,
//	})
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(rm),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return callBillingAPI(ctx)
//	})
//
// All types are safe for concurrent use by multiple goroutines against one
// shared instance. Failure and success accounting is applied in the order
// calls complete, not the order they were issued.
package resilience
