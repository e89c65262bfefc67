package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"sync"
	"syscall"
	"time"
)

// BackoffStrategy defines how delays grow between retry attempts. The zero
// value is unset; per-call options with an unset strategy inherit the
// manager's default.
type BackoffStrategy int

const (
	// BackoffFixed uses the same delay for every retry.
	BackoffFixed BackoffStrategy = iota + 1
	// BackoffLinear grows the delay linearly with the attempt number.
	BackoffLinear
	// BackoffExponential doubles the delay after each failed attempt.
	BackoffExponential
)

// String returns the string representation of the strategy.
func (s BackoffStrategy) String() string {
	switch s {
	case BackoffFixed:
		return "fixed"
	case BackoffLinear:
		return "linear"
	case BackoffExponential:
		return "exponential"
	default:
		return "unknown"
	}
}

// RetryOptions configures retry behavior for one execution. Zero fields
// inherit the manager's defaults.
type RetryOptions struct {
	// MaxAttempts is the maximum number of invocations (including the
	// initial one).
	// Default: 3
	MaxAttempts int

	// RetryDelay is the base delay between attempts.
	// Default: 100ms
	RetryDelay time.Duration

	// MaxDelay caps the computed delay before jitter is applied.
	// Default: 30s
	MaxDelay time.Duration

	// Strategy selects the backoff curve.
	// Default: BackoffFixed
	Strategy BackoffStrategy

	// Jitter perturbs each delay by a uniform random fraction in
	// [-Jitter*delay, +Jitter*delay]. Must be in [0, 1].
	// Default: 0 (no jitter)
	Jitter float64

	// RetryIf decides whether an error is worth retrying. A false return
	// propagates the original error immediately without consuming further
	// attempts.
	// Default: RetryTransient
	RetryIf func(err error) bool

	// OnRetry is called before waiting for each retry.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// RetryStats is a snapshot of cumulative retry statistics.
type RetryStats struct {
	TotalExecutions      int64   `json:"total_executions"`
	TotalRetries         int64   `json:"total_retries"`
	SuccessfulExecutions int64   `json:"successful_executions"`
	FailedExecutions     int64   `json:"failed_executions"`
	AverageRetries       float64 `json:"average_retries"`
	MaxRetries           int     `json:"max_retries"`
}

// RetryManager re-executes fallible operations according to a backoff
// policy. One manager may be shared across dependencies; its statistics are
// process-wide per instance. Safe for concurrent use.
type RetryManager struct {
	defaults RetryOptions

	mu         sync.Mutex
	stats      RetryStats
	metrics    *Metrics
	metricsSet bool
}

// NewRetryManager creates a retry manager with the given default options.
func NewRetryManager(defaults ...RetryOptions) *RetryManager {
	var opts RetryOptions
	if len(defaults) > 0 {
		opts = defaults[0]
	}
	return &RetryManager{defaults: normalizeRetryOptions(opts)}
}

// WithMetrics attaches an instrument bundle recording retry attempts.
func (rm *RetryManager) WithMetrics(m *Metrics) *RetryManager {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.metrics = m
	rm.metricsSet = m != nil
	return rm
}

// ExecuteWithRetry runs the operation, re-attempting per the options. When
// the retry budget is exhausted it returns a *RetriesExceededError wrapping
// the final error; a non-retryable error propagates unchanged.
func (rm *RetryManager) ExecuteWithRetry(ctx context.Context, op func(context.Context) error, opts ...RetryOptions) error {
	o := rm.defaults
	if len(opts) > 0 {
		o = rm.merge(opts[0])
	}

	var lastErr error
	for attempt := 1; attempt <= o.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			rm.record(attempt-1, true)
			return nil
		}
		lastErr = err

		if !o.RetryIf(err) {
			rm.record(attempt-1, false)
			return err
		}
		if attempt == o.MaxAttempts {
			break
		}

		delay := backoffDelay(o, attempt)
		if o.OnRetry != nil {
			o.OnRetry(attempt, err, delay)
		}
		rm.recordAttempt(ctx, attempt)

		select {
		case <-ctx.Done():
			rm.record(attempt-1, false)
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	rm.record(o.MaxAttempts-1, false)
	return &RetriesExceededError{Attempts: o.MaxAttempts, Err: lastErr}
}

// Wrap returns a function with the same signature as op that applies the
// retry policy transparently.
func (rm *RetryManager) Wrap(op func(context.Context) error, opts ...RetryOptions) func(context.Context) error {
	return func(ctx context.Context) error {
		return rm.ExecuteWithRetry(ctx, op, opts...)
	}
}

// Stats returns a snapshot of cumulative statistics.
func (rm *RetryManager) Stats() RetryStats {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	stats := rm.stats
	if stats.TotalExecutions > 0 {
		stats.AverageRetries = float64(stats.TotalRetries) / float64(stats.TotalExecutions)
	}
	return stats
}

// ResetStats zeroes the cumulative statistics.
func (rm *RetryManager) ResetStats() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.stats = RetryStats{}
}

func (rm *RetryManager) record(retries int, success bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.stats.TotalExecutions++
	rm.stats.TotalRetries += int64(retries)
	if retries > rm.stats.MaxRetries {
		rm.stats.MaxRetries = retries
	}
	if success {
		rm.stats.SuccessfulExecutions++
	} else {
		rm.stats.FailedExecutions++
	}
}

func (rm *RetryManager) recordAttempt(ctx context.Context, attempt int) {
	rm.mu.Lock()
	m := rm.metrics
	rm.mu.Unlock()
	if m != nil {
		m.recordRetry(ctx, attempt)
	}
}

// merge overlays per-call options on the manager defaults.
func (rm *RetryManager) merge(o RetryOptions) RetryOptions {
	d := rm.defaults
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = d.RetryDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = d.MaxDelay
	}
	if o.Strategy == 0 {
		o.Strategy = d.Strategy
	}
	if o.Jitter == 0 {
		o.Jitter = d.Jitter
	}
	if o.Jitter < 0 {
		o.Jitter = 0
	}
	if o.Jitter > 1 {
		o.Jitter = 1
	}
	if o.RetryIf == nil {
		o.RetryIf = d.RetryIf
	}
	if o.OnRetry == nil {
		o.OnRetry = d.OnRetry
	}
	return o
}

func normalizeRetryOptions(o RetryOptions) RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 100 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Jitter < 0 {
		o.Jitter = 0
	}
	if o.Jitter > 1 {
		o.Jitter = 1
	}
	if o.Strategy == 0 {
		o.Strategy = BackoffFixed
	}
	if o.RetryIf == nil {
		o.RetryIf = RetryTransient
	}
	return o
}

// backoffDelay computes the delay after the given failed attempt number.
func backoffDelay(o RetryOptions, attempt int) time.Duration {
	var delay time.Duration

	switch o.Strategy {
	case BackoffFixed:
		delay = o.RetryDelay
	case BackoffLinear:
		delay = o.RetryDelay * time.Duration(attempt)
	case BackoffExponential:
		delay = o.RetryDelay
		for i := 1; i < attempt; i++ {
			// Doubling past half of MaxDelay can only clamp; stopping
			// here keeps the product from overflowing.
			if delay >= o.MaxDelay/2 {
				delay = o.MaxDelay
				break
			}
			delay <<= 1
		}
	}

	if delay > o.MaxDelay {
		delay = o.MaxDelay
	}

	if o.Jitter > 0 && delay > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration((rand.Float64()*2 - 1) * o.Jitter * float64(delay))
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

// RetryAlways retries every non-nil error.
func RetryAlways(err error) bool {
	return err != nil
}

// Transienter marks errors that know whether they are transient. Errors
// from downstream clients can implement it to opt in or out of retrying.
type Transienter interface {
	Transient() bool
}

// RetryTransient is the default retry condition: network timeouts, refused
// or reset connections, operation timeouts, and errors that declare
// themselves transient via the Transienter interface.
func RetryTransient(err error) bool {
	if err == nil {
		return false
	}

	var t Transienter
	if errors.As(err, &t) {
		return t.Transient()
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
