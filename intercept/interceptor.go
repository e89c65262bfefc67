package intercept

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config configures the interceptor.
type Config struct {
	// RecentCapacity bounds the recent-errors table.
	// Default: 100
	RecentCapacity int
}

// Interceptor fans observed errors out to an ordered chain of handlers and
// tallies them into statistics. Safe for concurrent use.
type Interceptor struct {
	mu       sync.Mutex
	enabled  bool
	handlers []Handler
	total    int64
	byType   map[string]int64
	bySource map[string]int64
	recent   *recentTable
	capacity int
}

// NewInterceptor creates a new, enabled interceptor.
func NewInterceptor(config ...Config) *Interceptor {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.RecentCapacity <= 0 {
		cfg.RecentCapacity = 100
	}

	return &Interceptor{
		enabled:  true,
		byType:   make(map[string]int64),
		bySource: make(map[string]int64),
		recent:   newRecentTable(cfg.RecentCapacity),
		capacity: cfg.RecentCapacity,
	}
}

// Register appends a handler to the chain.
func (ic *Interceptor) Register(h Handler) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.handlers = append(ic.handlers, h)
}

// Unregister removes the handler by identity. It reports whether a handler
// was removed.
func (ic *Interceptor) Unregister(h Handler) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	for i, registered := range ic.handlers {
		if registered == h {
			ic.handlers = append(ic.handlers[:i], ic.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// SetEnabled pauses or resumes all processing. While disabled, Handle is a
// no-op: neither handlers nor statistics observe the error.
func (ic *Interceptor) SetEnabled(enabled bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.enabled = enabled
}

// Handle records the error and dispatches it to every handler in
// registration order. Missing context fields are synthesized. A handler
// that panics is isolated and does not prevent subsequent handlers from
// running; statistics already recorded for the error are unaffected.
// Handle never returns an error to its caller.
func (ic *Interceptor) Handle(err error, ectxs ...ErrorContext) {
	if err == nil {
		return
	}

	var ectx ErrorContext
	if len(ectxs) > 0 {
		ectx = ectxs[0]
	}
	if ectx.ErrorID == "" {
		ectx.ErrorID = uuid.NewString()
	}
	if ectx.Timestamp.IsZero() {
		ectx.Timestamp = time.Now()
	}
	if ectx.Source == "" {
		ectx.Source = "unknown"
	}

	typ := fmt.Sprintf("%T", err)

	ic.mu.Lock()
	if !ic.enabled {
		ic.mu.Unlock()
		return
	}

	ic.total++
	ic.byType[typ]++
	ic.bySource[ectx.Source]++
	ic.recent.upsert(summaryKey{typ, err.Error(), ectx.Source}, ectx.ErrorID, ectx.Timestamp)

	handlers := make([]Handler, len(ic.handlers))
	copy(handlers, ic.handlers)
	ic.mu.Unlock()

	for _, h := range handlers {
		dispatch(h, err, ectx)
	}
}

// dispatch isolates one handler invocation from panics.
func dispatch(h Handler, err error, ectx ErrorContext) {
	defer func() {
		_ = recover()
	}()
	h.Handle(err, ectx)
}

// Stats returns a deep-copied snapshot of the statistics.
func (ic *Interceptor) Stats() ErrorStats {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	byType := make(map[string]int64, len(ic.byType))
	for k, v := range ic.byType {
		byType[k] = v
	}
	bySource := make(map[string]int64, len(ic.bySource))
	for k, v := range ic.bySource {
		bySource[k] = v
	}

	return ErrorStats{
		TotalErrors: ic.total,
		ByType:      byType,
		BySource:    bySource,
		Recent:      ic.recent.snapshot(),
	}
}

// ResetStats zeroes all counters and clears the recent-errors table.
func (ic *Interceptor) ResetStats() {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	ic.total = 0
	ic.byType = make(map[string]int64)
	ic.bySource = make(map[string]int64)
	ic.recent = newRecentTable(ic.capacity)
}
