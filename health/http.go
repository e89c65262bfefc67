package health

import (
	"encoding/json"
	"net/http"
)

// LivenessHandler returns an HTTP handler for liveness probes. It only
// confirms the process is serving requests.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler returns an HTTP handler for readiness probes. It runs
// every enabled check and reports the aggregate status without per-check
// detail.
func ReadinessHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := svc.CheckAll(r.Context(), false)

		w.Header().Set("Content-Type", "text/plain")
		switch report.Status {
		case StatusUnhealthy.String():
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("UNHEALTHY"))
		case StatusDegraded.String():
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("DEGRADED"))
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		}
	}
}

// DetailedHandler returns an HTTP handler serving the full report with
// per-check results as JSON.
func DetailedHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := svc.CheckAll(r.Context(), true)

		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUnhealthy.String() {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}
