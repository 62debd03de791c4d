package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthChecker is a dependency that can report whether it is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NamedChecker pairs a dependency name with its checker. A nil Checker means
// the dependency runs in-memory and is reported as "ok".
type NamedChecker struct {
	Name    string
	Checker HealthChecker
}

// HealthHandlersConfig configures HealthHandlers.
type HealthHandlersConfig struct {
	Checkers       []NamedChecker
	MetricsEnabled bool
	// Timeout bounds a whole readiness probe. Defaults to 5s.
	Timeout time.Duration
}

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	checkers       []NamedChecker
	metricsEnabled bool
	timeout        time.Duration
}

// NewHealthHandlers creates the probe handlers.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	h := &HealthHandlers{
		checkers:       config.Checkers,
		metricsEnabled: config.MetricsEnabled,
		timeout:        config.Timeout,
	}
	if h.timeout <= 0 {
		h.timeout = 5 * time.Second
	}
	return h
}

// HealthResponse is the body of both probes.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health. It reports the process alive without touching
// any dependency.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. Checks run concurrently under one deadline; any
// failure turns the probe into a 503.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		checks  = make(map[string]string, len(h.checkers)+1)
		healthy = true
	)
	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			result := "ok"
			if c.Checker != nil {
				if err := c.Checker.HealthCheck(ctx); err != nil {
					slog.WarnContext(ctx, "readiness check failed", "check", c.Name, "error", err)
					result = "error"
				}
			}
			mu.Lock()
			checks[c.Name] = result
			if result != "ok" {
				healthy = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if h.metricsEnabled {
		checks["metrics"] = "ok"
	}

	resp := HealthResponse{Status: "healthy", Checks: checks, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	fail(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
	return false
}
