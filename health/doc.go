// Package health provides a health-check service with per-check timeouts,
// result caching, and status aggregation.
//
// A Checker is any probe that can report the health of one dependency or
// subsystem. Checks are registered by name with per-check options:
//
//	svc := health.NewService(health.ServiceConfig{})
//	svc.Register("db", health.CheckerFunc(pingDB),
//	    health.WithTimeout(2*time.Second),
//	    health.WithCacheTTL(15*time.Second),
//	    health.WithCritical(),
//	)
//
// Check runs one probe, reusing a cached result while its TTL is valid.
// CheckAll fans out over all enabled checks concurrently, waits for each to
// settle or time out, and rolls the results up into a single status: any
// critical check reporting unhealthy makes the aggregate unhealthy; any
// other unhealthy or degraded check makes it degraded.
//
// The package also ships net/http handlers for the usual probe endpoints:
//
//	http.Handle("/healthz", health.LivenessHandler())
//	http.Handle("/readyz", health.ReadinessHandler(svc))
//	http.Handle("/health", health.DetailedHandler(svc))
package health
