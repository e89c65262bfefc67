package health

import "context"

// Checker is the interface for health probes. A probe reports the health of
// exactly one dependency or subsystem; its registration name is assigned by
// the service.
type Checker interface {
	// Check performs the health check and returns the result. It should
	// honor ctx cancellation; the service enforces a per-check timeout
	// around it regardless.
	Check(ctx context.Context) Result
}

// CheckerFunc adapts an ordinary function to the Checker interface.
type CheckerFunc func(context.Context) Result

// Check performs the health check.
func (f CheckerFunc) Check(ctx context.Context) Result {
	return f(ctx)
}
