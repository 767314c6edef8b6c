package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependency is a named backend checked by the readiness probe.
// A nil Checker is reported as not configured and does not fail readiness.
type Dependency struct {
	Name    string
	Checker HealthChecker
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	deps    []Dependency
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(deps ...Dependency) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		timeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is a liveness probe endpoint. It never touches dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz checks every dependency and returns 200 only if all are healthy.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	healthy := true

	for _, dep := range h.deps {
		if dep.Checker == nil {
			checks[dep.Name] = "not configured"
			continue
		}
		if err := dep.Checker.Ping(ctx); err != nil {
			checks[dep.Name] = "error: " + err.Error()
			healthy = false
			continue
		}
		checks[dep.Name] = "ok"
	}

	status := "ok"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, HealthResponse{
		Status: status,
		Checks: checks,
	})
}
