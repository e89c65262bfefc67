package health

import (
	"context"
	"fmt"
	"runtime"
)

// RuntimeCheckerConfig configures the built-in Go runtime memory checker.
type RuntimeCheckerConfig struct {
	// WarningThreshold is the fraction of MaxAlloc that triggers degraded.
	// Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the fraction of MaxAlloc that triggers unhealthy.
	// Default: 0.95
	CriticalThreshold float64

	// MaxAlloc is the expected allocation ceiling in bytes. Zero means the
	// runtime's obtained-from-OS total is used.
	MaxAlloc uint64
}

// RuntimeChecker probes Go heap usage. It is a ready-made Checker for the
// process itself, usually registered as a non-critical check.
type RuntimeChecker struct {
	config RuntimeCheckerConfig
}

// NewRuntimeChecker creates a runtime memory checker.
func NewRuntimeChecker(config RuntimeCheckerConfig) *RuntimeChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold
	}
	return &RuntimeChecker{config: config}
}

// Check performs the memory check.
func (rc *RuntimeChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	maxAlloc := rc.config.MaxAlloc
	if maxAlloc == 0 {
		maxAlloc = stats.Sys
	}

	details := map[string]any{
		"alloc":      stats.Alloc,
		"sys":        stats.Sys,
		"num_gc":     stats.NumGC,
		"goroutines": runtime.NumGoroutine(),
	}

	if maxAlloc == 0 {
		return Healthy("memory stats unavailable").WithDetails(details)
	}

	usage := float64(stats.Alloc) / float64(maxAlloc)
	details["usage"] = usage

	switch {
	case usage >= rc.config.CriticalThreshold:
		return Unhealthy(fmt.Sprintf("memory usage critical: %.0f%%", usage*100), nil).WithDetails(details)
	case usage >= rc.config.WarningThreshold:
		return Degraded(fmt.Sprintf("memory usage elevated: %.0f%%", usage*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("memory usage normal: %.0f%%", usage*100)).WithDetails(details)
	}
}
