// Package intercept routes observed errors through an ordered chain of
// handlers and tallies them into statistics.
//
// An Interceptor is a fan-out sink: any error observed anywhere in the
// system can be forwarded to it. Each error is wrapped in an ErrorContext
// with a generated ID and timestamp, counted per type and per source, and
// summarized in a bounded recent-errors table before the handlers run.
//
//	ic := intercept.NewInterceptor(intercept.Config{})
//	ic.Register(intercept.NewHandlerFunc(func(err error, ectx intercept.ErrorContext) {
//	    log.Printf("[%s] %s: %v", ectx.ErrorID, ectx.Source, err)
//	}))
//
//	ic.Handle(err, intercept.ErrorContext{Source: "billing-api"})
//
// Handlers run synchronously in registration order. A handler that panics
// is isolated; the remaining handlers still run and the error's statistics
// are unaffected. The interceptor itself never returns an error to its
// caller.
package intercept
