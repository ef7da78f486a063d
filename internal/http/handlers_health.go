package http

import (
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady reports whether pages can be rendered and the backend is
// configured. An unconfigured backend still serves the read-only dashboard,
// but is reported as not ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{
		"templates": "ok",
		"backend":   "ok",
	}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}
	if !s.configured() {
		checks["backend"] = "not_configured"
		if status == "ready" {
			status = "unconfigured"
		}
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	sec := s.detector.GetMetrics()
	rl := s.limiter.GetMetrics()
	tr := s.tracer.GetMetrics()

	fmt.Fprintf(w, "# HELP hisab_uptime_seconds Time since the server started\n")
	fmt.Fprintf(w, "hisab_uptime_seconds %.0f\n", time.Since(s.started).Seconds())
	fmt.Fprintf(w, "# HELP hisab_requests_total Requests served\n")
	fmt.Fprintf(w, "hisab_requests_total %d\n", tr.TotalRequests)
	fmt.Fprintf(w, "hisab_last_response_time_microseconds %d\n", tr.LastResponseTime)
	fmt.Fprintf(w, "# HELP hisab_rate_limit_hits_total Requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "hisab_rate_limit_hits_total %d\n", rl.TotalHits)
	fmt.Fprintf(w, "hisab_rate_limit_clients %d\n", rl.ClientCount)
	fmt.Fprintf(w, "# HELP hisab_suspicious_requests_total Requests matching attack patterns\n")
	fmt.Fprintf(w, "hisab_suspicious_requests_total %d\n", sec.SuspiciousRequests)
	fmt.Fprintf(w, "hisab_invalid_ip_attempts_total %d\n", sec.InvalidIPAttempts)
}
