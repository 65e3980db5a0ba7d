package server

import (
	"net/http"
	"sync"
	"time"
)

// RequestStats accumulates request durations and server-failure counts for
// the health sampler. Counters reset on each Snapshot, so readings cover
// exactly one sampling interval.
type RequestStats struct {
	mu       sync.Mutex
	count    int64
	failures int64
	total    time.Duration
}

// Record adds one completed request. A 5xx status counts as a failure;
// client errors (4xx) are governance rejections, not service faults.
func (s *RequestStats) Record(d time.Duration, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.total += d
	if status >= 500 {
		s.failures++
	}
}

// Snapshot returns the average response time in milliseconds and the
// percentage of requests answered 5xx since the previous snapshot, then
// resets the counters. An idle interval reports zero for both.
func (s *RequestStats) Snapshot() (avgResponseMillis, errorRatePercent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count > 0 {
		avgResponseMillis = float64(s.total) / float64(time.Millisecond) / float64(s.count)
		errorRatePercent = float64(s.failures) / float64(s.count) * 100
	}
	s.count, s.failures, s.total = 0, 0, 0
	return avgResponseMillis, errorRatePercent
}

// StatsMiddleware feeds every response's duration and status into stats.
func StatsMiddleware(stats *RequestStats) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			stats.Record(time.Since(start), wrapped.statusCode)
		})
	}
}
