package middleware

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// counters are process-wide; /metrics exposes them as JSON.
var (
	startTime = time.Now()

	httpRequests   atomic.Uint64
	httpInFlight   atomic.Int64
	httpSucceeded  atomic.Uint64
	httpFailed     atomic.Uint64
	toolCalls      atomic.Uint64
	toolsRunning   atomic.Int64
	toolsFailed    atomic.Uint64
	analysisFailed atomic.Uint64
	cleaningFailed atomic.Uint64
)

// ToolCallStarted counts an MCP tool call and marks it running. The
// returned func marks it finished; failed reports a tool-level error.
func ToolCallStarted() (done func(failed bool)) {
	toolCalls.Add(1)
	toolsRunning.Add(1)
	return func(failed bool) {
		toolsRunning.Add(-1)
		if failed {
			toolsFailed.Add(1)
		}
	}
}

// IncrementAnalysisFailures counts analyses that produced the error record.
func IncrementAnalysisFailures() { analysisFailed.Add(1) }

// IncrementCleaningFailures counts failed cleaning chat requests.
func IncrementCleaningFailures() { cleaningFailed.Add(1) }

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       httpRequests.Load(),
		"requests_in_progress": httpInFlight.Load(),
		"requests_success":     httpSucceeded.Load(),
		"requests_failed":      httpFailed.Load(),
		"tool_calls_total":     toolCalls.Load(),
		"tool_calls_running":   toolsRunning.Load(),
		"tool_calls_failed":    toolsFailed.Load(),
		"analysis_failures":    analysisFailed.Load(),
		"cleaning_failures":    cleaningFailed.Load(),
		"uptime_seconds":       time.Since(startTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware counts requests by outcome; 4xx and 5xx are failures.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpRequests.Add(1)
		httpInFlight.Add(1)
		defer httpInFlight.Add(-1)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < http.StatusBadRequest {
			httpSucceeded.Add(1)
		} else {
			httpFailed.Add(1)
		}
	})
}

func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GetMetrics())
}
