package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/bbcode/internal/logging"
	"github.com/conneroisu/bbcode/internal/version"
	"github.com/conneroisu/bbcode/pkg/bbcode"
)

// HealthStatus is the state of one check or of the whole process.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the result of one check run.
type HealthCheck struct {
	Name        string         `json:"name"`
	Status      HealthStatus   `json:"status"`
	Message     string         `json:"message,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration"`
	Critical    bool           `json:"critical"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// HealthChecker is something the health monitor can probe.
type HealthChecker interface {
	Name() string
	IsCritical() bool
	Check(ctx context.Context) HealthCheck
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc struct {
	name     string
	critical bool
	checkFn  func(ctx context.Context) HealthCheck
}

// NewHealthCheckFunc creates a named check.
func NewHealthCheckFunc(name string, critical bool, checkFn func(ctx context.Context) HealthCheck) *HealthCheckFunc {
	return &HealthCheckFunc{name: name, critical: critical, checkFn: checkFn}
}

func (h *HealthCheckFunc) Name() string     { return h.name }
func (h *HealthCheckFunc) IsCritical() bool { return h.critical }

// Check runs the function and fills in the fields it left empty.
func (h *HealthCheckFunc) Check(ctx context.Context) HealthCheck {
	result := h.checkFn(ctx)
	if result.Name == "" {
		result.Name = h.name
	}
	result.Critical = h.critical
	return result
}

// HealthResponse is the body served by /health.
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
}

// HealthMonitor runs registered checks on demand.
type HealthMonitor struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	logger  logging.Logger
	timeout time.Duration
	started time.Time
}

// NewHealthMonitor creates a monitor with a per-check timeout of five seconds.
func NewHealthMonitor(logger logging.Logger) *HealthMonitor {
	return &HealthMonitor{
		checks:  make(map[string]HealthChecker),
		logger:  logger.WithComponent("health"),
		timeout: 5 * time.Second,
		started: time.Now(),
	}
}

// RegisterCheck adds or replaces a check by name.
func (hm *HealthMonitor) RegisterCheck(checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[checker.Name()] = checker
}

// UnregisterCheck removes a check.
func (hm *HealthMonitor) UnregisterCheck(name string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	delete(hm.checks, name)
}

// CheckNames lists the registered checks in order.
func (hm *HealthMonitor) CheckNames() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes every check concurrently and aggregates the results.
func (hm *HealthMonitor) Run(ctx context.Context) HealthResponse {
	hm.mu.RLock()
	checkers := make([]HealthChecker, 0, len(hm.checks))
	for _, c := range hm.checks {
		checkers = append(checkers, c)
	}
	hm.mu.RUnlock()

	results := make(chan HealthCheck, len(checkers))
	var wg sync.WaitGroup
	for _, checker := range checkers {
		wg.Add(1)
		go func(checker HealthChecker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, hm.timeout)
			defer cancel()

			start := time.Now()
			result := checker.Check(cctx)
			result.Duration = time.Since(start)
			result.LastChecked = time.Now()
			results <- result
		}(checker)
	}
	wg.Wait()
	close(results)

	checks := make(map[string]HealthCheck, len(checkers))
	for result := range results {
		checks[result.Name] = result
		if result.Status != HealthStatusHealthy {
			hm.logger.Warn(ctx, nil, "Health check not healthy",
				"name", result.Name,
				"status", string(result.Status),
				"message", result.Message)
		}
	}

	return HealthResponse{
		Status:    overallStatus(checks),
		Timestamp: time.Now(),
		Version:   version.Get().Short(),
		Uptime:    time.Since(hm.started).Round(time.Second).String(),
		Checks:    checks,
	}
}

// A failing critical check makes the process unhealthy; any other failure
// only degrades it.
func overallStatus(checks map[string]HealthCheck) HealthStatus {
	status := HealthStatusHealthy
	for _, c := range checks {
		switch {
		case c.Status == HealthStatusUnhealthy && c.Critical:
			return HealthStatusUnhealthy
		case c.Status != HealthStatusHealthy:
			status = HealthStatusDegraded
		}
	}
	return status
}

// HTTPHandler serves Run as JSON, with 503 when unhealthy.
func (hm *HealthMonitor) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.Run(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(health); err != nil {
			hm.logger.Error(r.Context(), err, "Failed to encode health response")
		}
	}
}

// PathsHealthChecker reports whether every watched document root is still a
// readable directory or file.
func PathsHealthChecker(paths []string) HealthChecker {
	return NewHealthCheckFunc("documents", true, func(ctx context.Context) HealthCheck {
		var missing []string
		for _, p := range paths {
			if _, err := os.Stat(p); err != nil {
				missing = append(missing, p)
			}
		}
		if len(missing) > 0 {
			return HealthCheck{
				Status:   HealthStatusUnhealthy,
				Message:  fmt.Sprintf("%d document path(s) unavailable", len(missing)),
				Metadata: map[string]any{"missing": missing},
			}
		}
		return HealthCheck{
			Status:   HealthStatusHealthy,
			Message:  "document paths available",
			Metadata: map[string]any{"paths": len(paths)},
		}
	})
}

// TagSetHealthChecker reports unhealthy when the parser has no tags to
// render, since every document would then pass through as text.
func TagSetHealthChecker(registry *bbcode.Registry) HealthChecker {
	return NewHealthCheckFunc("tagset", true, func(ctx context.Context) HealthCheck {
		n := registry.Len()
		if n == 0 {
			return HealthCheck{Status: HealthStatusUnhealthy, Message: "no tags registered"}
		}
		return HealthCheck{
			Status:   HealthStatusHealthy,
			Message:  fmt.Sprintf("%d tags registered", n),
			Metadata: map[string]any{"tags": registry.Names()},
		}
	})
}

// GoroutineHealthChecker degrades when the goroutine count passes limit,
// usually a sign of leaked websocket clients.
func GoroutineHealthChecker(limit int) HealthChecker {
	return NewHealthCheckFunc("goroutines", false, func(ctx context.Context) HealthCheck {
		n := runtime.NumGoroutine()
		status := HealthStatusHealthy
		message := "goroutine count is normal"
		if n > limit {
			status = HealthStatusDegraded
			message = fmt.Sprintf("high goroutine count: %d", n)
		}
		return HealthCheck{Status: status, Message: message, Metadata: map[string]any{"count": n}}
	})
}
