package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthChecker reports whether one dependency is usable.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// TimeoutChecker bounds a slow dependency check, such as the object store.
type TimeoutChecker struct {
	Checker HealthChecker
	Timeout time.Duration
}

func (t TimeoutChecker) Check(ctx context.Context) error {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return t.Checker.Check(ctx)
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

type CheckStatus struct {
	Status  string        `json:"status"`
	Took    time.Duration `json:"took_ns"`
	Message string        `json:"message,omitempty"`
}

// runChecks runs every checker concurrently and collects the outcome by name.
func runChecks(ctx context.Context, checkers map[string]HealthChecker) HealthStatus {
	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]CheckStatus, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := checkers[name].Check(ctx)
			results[i] = CheckStatus{Status: statusHealthy, Took: time.Since(start)}
			if err != nil {
				results[i].Status = statusUnhealthy
				results[i].Message = err.Error()
			}
		}()
	}
	wg.Wait()

	health := HealthStatus{Status: statusHealthy, Timestamp: time.Now(), Checks: make(map[string]CheckStatus, len(names))}
	for i, name := range names {
		health.Checks[name] = results[i]
		if results[i].Status == statusUnhealthy {
			health.Status = statusUnhealthy
		}
	}
	return health
}

// HealthHandler answers 503 when any checker fails.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := runChecks(ctx, checkers)
		code := http.StatusOK
		if health.Status == statusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, health)
	}
}

func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
