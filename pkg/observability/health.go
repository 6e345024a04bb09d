package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ErrDegraded marks a check result that is usable but impaired. A check
// returning an error that wraps it degrades the service even when the check
// is critical.
var ErrDegraded = errors.New("degraded")

// DependencyCheck tests one dependency. A failing critical check makes the
// service unhealthy; a failing optional check only degrades it.
type DependencyCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// DatabaseCheck pings the pool and runs a trivial query. A pool with every
// connection in use reports degraded, since requests then wait for the
// acquire timeout.
func DatabaseCheck(db *sql.DB) DependencyCheck {
	return DependencyCheck{
		Name:     "database",
		Critical: true,
		Check: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			var one int
			if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
				return fmt.Errorf("query failed: %w", err)
			}
			stats := db.Stats()
			if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
				return fmt.Errorf("%w: connection pool exhausted", ErrDegraded)
			}
			return nil
		},
	}
}

// RedisCheck pings Redis. Rate limiting fails open, so it is optional.
func RedisCheck(client *redis.Client) DependencyCheck {
	return DependencyCheck{
		Name: "redis",
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

// HealthChecker runs the registered checks for the readiness endpoint
type HealthChecker struct {
	version string
	timeout time.Duration
	checks  []DependencyCheck
}

// NewHealthChecker creates a health checker reporting version
func NewHealthChecker(version string, checks ...DependencyCheck) *HealthChecker {
	return &HealthChecker{
		version: version,
		timeout: 5 * time.Second,
		checks:  checks,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Liveness answers 200 while the process serves requests
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   h.version,
	})
}

// Readiness runs every check and answers 503 when the service is unhealthy
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

// Check runs the checks in registration order
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(h.checks)),
	}

	for _, p := range h.checks {
		dep := runCheck(ctx, p)
		status.Dependencies[p.Name] = dep
		status.Status = worst(status.Status, dep.Status)
	}
	return status
}

func runCheck(ctx context.Context, p DependencyCheck) DependencyStatus {
	start := time.Now()
	err := p.Check(ctx)
	dep := DependencyStatus{
		Status:    StatusHealthy,
		Latency:   time.Since(start),
		Timestamp: start,
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrDegraded) || !p.Critical:
		dep.Status = StatusDegraded
		dep.Message = err.Error()
	default:
		dep.Status = StatusUnhealthy
		dep.Message = err.Error()
	}
	return dep
}

func worst(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func writeHealth(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
