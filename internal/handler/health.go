package handler

import (
	"context"
	"net/http"
	"time"
)

// Checker pings backing services. The result maps a backend name to its
// error, nil when healthy.
type Checker interface {
	Check(ctx context.Context) map[string]error
}

// readyTimeout bounds a readiness probe.
const readyTimeout = 5 * time.Second

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	checker Checker
}

// NewHealthHandler creates a new HealthHandler. A nil checker means there
// are no backends to probe.
func NewHealthHandler(checker Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is the liveness probe. It never touches dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz is the readiness probe. It answers 503 while any backend fails.
// Error detail is not echoed to the client.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	var results map[string]error
	if h.checker != nil {
		results = h.checker.Check(ctx)
	}

	checks := make(map[string]string, len(results))
	healthy := true
	for name, err := range results {
		if err != nil {
			checks[name] = "unavailable"
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}
