package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func failingOp(ctx context.Context) error { return errTest }

func succeedingOp(ctx context.Context) error { return nil }

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.SuccessThreshold != 1 {
		t.Errorf("SuccessThreshold = %d, want 1", cb.config.SuccessThreshold)
	}
	if cb.config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cb.config.Timeout)
	}
	if cb.config.ResetTimeout != 30*time.Second {
		t.Errorf("ResetTimeout = %v, want 30s", cb.config.ResetTimeout)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, failingOp); !errors.Is(err, errTest) {
			t.Fatalf("Execute() error = %v, want %v", err, errTest)
		}
		if cb.State() != StateClosed {
			t.Fatalf("after %d failures, state = %v, want closed", i+1, cb.State())
		}
	}

	if err := cb.Execute(ctx, failingOp); !errors.Is(err, errTest) {
		t.Fatalf("Execute() error = %v, want %v", err, errTest)
	}
	if cb.State() != StateOpen {
		t.Errorf("after 3 failures, state = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, failingOp)
	_ = cb.Execute(ctx, failingOp)
	_ = cb.Execute(ctx, succeedingOp)
	_ = cb.Execute(ctx, failingOp)
	_ = cb.Execute(ctx, failingOp)

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed (failure streak was broken)", cb.State())
	}

	_ = cb.Execute(ctx, failingOp)
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open after 3 consecutive failures", cb.State())
	}
}

func TestCircuitBreaker_ShortCircuitsWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "payments",
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, failingOp)
	}

	invoked := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})

	if invoked {
		t.Error("operation was invoked while circuit open")
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}

	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("Execute() error = %T, want *CircuitOpenError", err)
	}
	if openErr.Name != "payments" {
		t.Errorf("openErr.Name = %q, want %q", openErr.Name, "payments")
	}
	if openErr.RetryAfter <= 0 {
		t.Errorf("openErr.RetryAfter = %v, want > 0", openErr.RetryAfter)
	}
}

func TestCircuitBreaker_FallbackWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, failingOp)

	invoked, fellBack := false, false
	err := cb.ExecuteWithFallback(ctx,
		func(ctx context.Context) error {
			invoked = true
			return nil
		},
		func(ctx context.Context) error {
			fellBack = true
			return nil
		},
	)

	if err != nil {
		t.Errorf("ExecuteWithFallback() error = %v, want nil", err)
	}
	if invoked {
		t.Error("operation was invoked while circuit open")
	}
	if !fellBack {
		t.Error("fallback was not invoked")
	}
}

func TestCircuitBreaker_FallbackNotUsedWhileClosed(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 5})
	ctx := context.Background()

	fellBack := false
	err := cb.ExecuteWithFallback(ctx, failingOp, func(ctx context.Context) error {
		fellBack = true
		return nil
	})

	if !errors.Is(err, errTest) {
		t.Errorf("ExecuteWithFallback() error = %v, want %v", err, errTest)
	}
	if fellBack {
		t.Error("fallback ran for a closed-circuit failure")
	}
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		ResetTimeout:     10 * time.Second,
		Clock:            clock,
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, failingOp)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	clock.Advance(10 * time.Second)

	// The first call at/after nextAttemptTime goes through as a trial.
	invoked := false
	if err := cb.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	}); err != nil {
		t.Fatalf("trial Execute() error = %v, want nil", err)
	}
	if !invoked {
		t.Fatal("trial call was not executed")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open (1 of 2 successes)", cb.State())
	}

	if err := cb.Execute(ctx, succeedingOp); err != nil {
		t.Fatalf("second trial Execute() error = %v, want nil", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed after 2 half-open successes", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
		Clock:            clock,
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, failingOp)
	clock.Advance(10 * time.Second)

	// Failed trial returns the circuit to open with a fresh cooldown.
	_ = cb.Execute(ctx, failingOp)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after failed trial", cb.State())
	}

	invoked := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	if invoked {
		t.Error("operation invoked before fresh cooldown elapsed")
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}

	clock.Advance(10 * time.Second)
	if err := cb.Execute(ctx, succeedingOp); err != nil {
		t.Errorf("Execute() after fresh cooldown error = %v, want nil", err)
	}
}

func TestCircuitBreaker_TimeoutCountsAsFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Timeout:          20 * time.Millisecond,
		ResetTimeout:     time.Minute,
	})
	ctx := context.Background()

	err := cb.Execute(ctx, func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open after timeout failure", cb.State())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
		Clock:            clock,
	})
	ctx := context.Background()

	type transition struct{ from, to State }
	var transitions []transition
	cb.OnStateChange(func(from, to State) {
		transitions = append(transitions, transition{from, to})
	})

	_ = cb.Execute(ctx, succeedingOp) // no transition
	_ = cb.Execute(ctx, failingOp)    // closed -> open
	clock.Advance(10 * time.Second)
	_ = cb.Execute(ctx, succeedingOp) // open -> half-open -> closed

	want := []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	if len(transitions) != len(want) {
		t.Fatalf("got %d transitions, want %d: %v", len(transitions), len(want), transitions)
	}
	for i, tr := range want {
		if transitions[i] != tr {
			t.Errorf("transition[%d] = %v -> %v, want %v -> %v",
				i, transitions[i].from, transitions[i].to, tr.from, tr.to)
		}
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, failingOp)
	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed after reset", cb.State())
	}
	stats := cb.Stats()
	if stats.Failures != 0 || stats.Successes != 0 {
		t.Errorf("counters = (%d, %d), want zeroed", stats.Failures, stats.Successes)
	}

	if err := cb.Execute(ctx, succeedingOp); err != nil {
		t.Errorf("Execute() after reset error = %v, want nil", err)
	}
}

func TestCircuitBreaker_ForceOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{ResetTimeout: time.Minute})
	ctx := context.Background()

	cb.ForceOpen()

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	invoked := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	if invoked {
		t.Error("operation invoked while forced open")
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "db",
		FailureThreshold: 5,
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, succeedingOp)
	_ = cb.Execute(ctx, failingOp)
	_ = cb.Execute(ctx, failingOp)

	stats := cb.Stats()
	if stats.Name != "db" {
		t.Errorf("stats.Name = %q, want %q", stats.Name, "db")
	}
	if stats.State != "closed" {
		t.Errorf("stats.State = %q, want closed", stats.State)
	}
	if stats.TotalCalls != 3 {
		t.Errorf("stats.TotalCalls = %d, want 3", stats.TotalCalls)
	}
	if stats.Failures != 2 {
		t.Errorf("stats.Failures = %d, want 2", stats.Failures)
	}
	if stats.LastFailureTime.IsZero() {
		t.Error("stats.LastFailureTime is zero, want set")
	}
}

func TestCircuitBreaker_IsFailureClassifier(t *testing.T) {
	errIgnorable := errors.New("not found")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, errIgnorable)
		},
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error { return errIgnorable })
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed (classifier ignores the error)", cb.State())
	}

	_ = cb.Execute(ctx, failingOp)
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_ConcurrentCalls(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 100})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(ctx, succeedingOp)
		}()
	}
	wg.Wait()

	stats := cb.Stats()
	if stats.TotalCalls != 50 {
		t.Errorf("stats.TotalCalls = %d, want 50", stats.TotalCalls)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}
