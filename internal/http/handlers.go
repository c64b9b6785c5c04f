package http

import (
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady reports not_ready while the most recent save attempt failed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	health := s.deposits.PersistenceHealth()

	status, httpStatus := "ready", http.StatusOK
	if !health.Healthy {
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	}

	rl := s.rateLimiter.GetMetrics()
	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks": map[string]any{
			"persistence": health,
			"sessions":    map[string]any{"active": s.sessions.Active()},
			"rate_limiter": map[string]any{
				"active_clients": rl.ClientCount,
				"status":         "ok",
			},
		},
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	health := s.deposits.PersistenceHealth()
	summary := s.deposits.Summary()
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_client_errors_total", "counter", "Responses with a 4xx status", traceMetrics.ClientErrors)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)

	metric("deposits_created_total", "counter", "Deposits registered", s.appMetrics.depositsCreated.Load())
	metric("deposits_updated_total", "counter", "Deposits edited", s.appMetrics.depositsUpdated.Load())
	metric("deposits_deleted_total", "counter", "Deposits removed", s.appMetrics.depositsDeleted.Load())
	metric("ledger_status_changes_total", "counter", "Payment status changes", s.appMetrics.statusChanges.Load())
	metric("deposits_stored", "gauge", "Deposits currently held", summary.Count)

	fmt.Fprintf(w, "# HELP logins_total Admin login attempts\n")
	fmt.Fprintf(w, "# TYPE logins_total counter\n")
	fmt.Fprintf(w, "logins_total{result=\"ok\"} %d\n", s.appMetrics.loginsOK.Load())
	fmt.Fprintf(w, "logins_total{result=\"failed\"} %d\n\n", s.appMetrics.loginsFailed.Load())
	metric("sessions_active", "gauge", "Live admin sessions", s.sessions.Active())

	metric("persistence_failures_total", "counter", "Failed state saves", health.Failures)
	metric("rate_limit_rejections_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.Rejected)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", s.securityDetector.SuspiciousRequests())
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", uptime.Seconds()))
}
