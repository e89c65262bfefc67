package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// ServiceConfig configures the health-check service.
type ServiceConfig struct {
	// DefaultTimeout bounds checks that set no timeout of their own.
	// Default: 5 seconds
	DefaultTimeout time.Duration

	// DefaultCacheTTL is the cache window for checks that set no TTL of
	// their own.
	// Default: 30 seconds
	DefaultCacheTTL time.Duration

	// Meter, when set, records check outcomes.
	Meter metric.Meter
}

// CheckOption configures one registered check.
type CheckOption func(*checkConfig)

// WithTimeout bounds each execution of the check.
func WithTimeout(d time.Duration) CheckOption {
	return func(c *checkConfig) { c.timeout = d }
}

// WithCacheTTL sets how long the check's result is reused before the check
// runs again.
func WithCacheTTL(d time.Duration) CheckOption {
	return func(c *checkConfig) { c.cacheTTL = d }
}

// WithCritical marks the check as critical: an unhealthy critical check
// makes the aggregate status unhealthy.
func WithCritical() CheckOption {
	return func(c *checkConfig) { c.critical = true }
}

// WithTags attaches free-form tags reported alongside the check.
func WithTags(tags ...string) CheckOption {
	return func(c *checkConfig) { c.tags = tags }
}

type checkConfig struct {
	timeout  time.Duration
	cacheTTL time.Duration
	critical bool
	tags     []string
}

type registeredCheck struct {
	checker Checker
	cfg     checkConfig
	enabled bool
}

// Service registers named health checks, executes them with per-check
// timeout and result caching, and aggregates them into one status. Safe for
// concurrent use.
type Service struct {
	config   ServiceConfig
	outcomes metric.Int64Counter

	mu     sync.RWMutex
	checks map[string]*registeredCheck
	order  []string // registration order

	cache *resultCache
	sf    singleflight.Group
}

// NewService creates a new health-check service.
func NewService(config ...ServiceConfig) *Service {
	var cfg ServiceConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Second
	}
	if cfg.DefaultCacheTTL <= 0 {
		cfg.DefaultCacheTTL = 30 * time.Second
	}

	s := &Service{
		config: cfg,
		checks: make(map[string]*registeredCheck),
		cache:  newResultCache(),
	}
	if cfg.Meter != nil {
		counter, err := cfg.Meter.Int64Counter(
			"health.check.results",
			metric.WithDescription("Health check results by status"),
			metric.WithUnit("{check}"),
		)
		if err == nil {
			s.outcomes = counter
		}
	}
	return s
}

// Register adds a check under the given name, enabled. Re-registering a
// name overwrites the check and drops any cached result for it.
func (s *Service) Register(name string, checker Checker, opts ...CheckOption) {
	cfg := checkConfig{
		timeout:  s.config.DefaultTimeout,
		cacheTTL: s.config.DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	if _, exists := s.checks[name]; !exists {
		s.order = append(s.order, name)
	}
	s.checks[name] = &registeredCheck{checker: checker, cfg: cfg, enabled: true}
	s.cache.delete(name)
	s.sf.Forget(name)
	s.mu.Unlock()
}

// Unregister removes the check and its cached result. Idempotent.
func (s *Service) Unregister(name string) {
	s.mu.Lock()
	delete(s.checks, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.cache.delete(name)
	s.sf.Forget(name)
	s.mu.Unlock()
}

// Names returns the registered check names in registration order.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// SetEnabled excludes a disabled check from aggregation without
// unregistering it. Check still runs disabled checks on demand.
func (s *Service) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rc, ok := s.checks[name]
	if !ok {
		return ErrCheckNotFound
	}
	rc.enabled = enabled
	return nil
}

// Check runs one named check. A cached, unexpired result is returned
// without invoking the check; otherwise the check runs under its timeout
// and the result is cached. Concurrent uncached calls for the same name
// share a single execution. The check itself is detached from the caller's
// cancellation and bounded only by its timeout, so an aborted caller cannot
// cache a spurious failure.
func (s *Service) Check(ctx context.Context, name string) (Result, error) {
	s.mu.RLock()
	rc, ok := s.checks[name]
	s.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckNotFound
	}
	checker, cfg := rc.checker, rc.cfg

	if res, ok := s.cache.get(name); ok {
		res.Cached = true
		return res, nil
	}

	v, _, _ := s.sf.Do(name, func() (any, error) {
		res := s.runCheck(ctx, name, checker, cfg)
		// Discard the result if the registration changed while the
		// check ran.
		s.mu.RLock()
		if s.checks[name] == rc {
			s.cache.set(name, res, cfg.cacheTTL)
		}
		s.mu.RUnlock()
		return res, nil
	})
	return v.(Result), nil
}

// Summary holds aggregate counts for one CheckAll pass.
type Summary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Degraded  int `json:"degraded"`
	Unhealthy int `json:"unhealthy"`
	Disabled  int `json:"disabled"`
}

// CheckReport is the per-check section of a detailed report.
type CheckReport struct {
	Status   string         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Critical bool           `json:"critical,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Cached   bool           `json:"cached,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Report is the aggregate outcome of CheckAll.
type Report struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Summary   Summary                `json:"summary"`
	Checks    map[string]CheckReport `json:"checks,omitempty"`
}

// CheckAll runs every registered, enabled check concurrently and waits for
// all of them to settle; a hung check cannot block the others past its own
// timeout. The aggregate status is unhealthy if any critical check is
// unhealthy, degraded if any other check is unhealthy or degraded, and
// healthy otherwise. Per-check results are included only when detailed is
// true.
func (s *Service) CheckAll(ctx context.Context, detailed bool) Report {
	type target struct {
		name     string
		critical bool
		tags     []string
	}

	s.mu.RLock()
	targets := make([]target, 0, len(s.order))
	disabled := 0
	for _, name := range s.order {
		rc := s.checks[name]
		if !rc.enabled {
			disabled++
			continue
		}
		targets = append(targets, target{name, rc.cfg.critical, rc.cfg.tags})
	}
	s.mu.RUnlock()

	results := make(map[string]Result, len(targets))
	var wg sync.WaitGroup
	var rmu sync.Mutex

	for _, t := range targets {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			res, err := s.Check(ctx, name)
			if err != nil {
				// Unregistered between snapshot and execution.
				res = Unhealthy("check not found", err)
			}
			rmu.Lock()
			results[name] = res
			rmu.Unlock()
		}(t.name)
	}
	wg.Wait()

	report := Report{
		Timestamp: time.Now(),
		Summary:   Summary{Total: len(targets), Disabled: disabled},
	}
	if detailed {
		report.Checks = make(map[string]CheckReport, len(targets))
	}

	criticalDown := false
	anyDown := false
	for _, t := range targets {
		res := results[t.name]
		switch res.Status {
		case StatusHealthy:
			report.Summary.Healthy++
		case StatusDegraded:
			report.Summary.Degraded++
			anyDown = true
		case StatusUnhealthy:
			report.Summary.Unhealthy++
			anyDown = true
			if t.critical {
				criticalDown = true
			}
		}

		if detailed {
			cr := CheckReport{
				Status:   res.Status.String(),
				Message:  res.Message,
				Critical: t.critical,
				Tags:     t.tags,
				Duration: res.Duration.String(),
				Cached:   res.Cached,
				Details:  res.Details,
			}
			if res.Error != nil {
				cr.Error = res.Error.Error()
			}
			report.Checks[t.name] = cr
		}
	}

	switch {
	case criticalDown:
		report.Status = StatusUnhealthy.String()
	case anyDown:
		report.Status = StatusDegraded.String()
	default:
		report.Status = StatusHealthy.String()
	}
	return report
}

// runCheck executes the check under its timeout, converting a timeout or
// panic into an unhealthy result. The buffered channel lets a late result
// be dropped without leaking the goroutine. The check context carries the
// caller's values but not its cancellation: the execution is shared across
// callers via singleflight, so one caller hanging up must not fail it.
func (s *Service) runCheck(ctx context.Context, name string, checker Checker, cfg checkConfig) Result {
	timeout := cfg.timeout
	if timeout <= 0 {
		timeout = s.config.DefaultTimeout
	}

	start := time.Now()
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	resultCh := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- Unhealthy(fmt.Sprintf("check panicked: %v", r), fmt.Errorf("health: check panic: %v", r))
			}
		}()
		resultCh <- checker.Check(cctx)
	}()

	var result Result
	select {
	case result = <-resultCh:
	case <-cctx.Done():
		result = Unhealthy("check timed out", ErrCheckTimeout)
	}

	result.Duration = time.Since(start)
	if result.Timestamp.IsZero() {
		result.Timestamp = start
	}

	if s.outcomes != nil {
		s.outcomes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("check.name", name),
			attribute.String("status", result.Status.String()),
			attribute.Bool("critical", cfg.critical),
		))
	}
	return result
}
