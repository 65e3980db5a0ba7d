// Package alert evaluates health samples against static thresholds, keeps
// active and historical alerts in bounded ring buffers, and notifies an
// optional webhook sink.
package alert

import "time"

// Severity buckets alerts for history retention and webhook coloring.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one raised condition. Created by the registry, resolved either
// by operator action or by the auto-resolve policy.
type Alert struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Message    string            `json:"message"`
	Severity   Severity          `json:"severity"`
	CreatedAt  time.Time         `json:"created_at"`
	Resolved   bool              `json:"resolved"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Threshold is the static per-metric policy. Never mutated at runtime.
type Threshold struct {
	Warning  float64
	Critical float64
}

// Monitored metric names. These double as alert types for sampled metrics;
// ad-hoc events use their own type strings (e.g. "rate_limit").
const (
	MetricMemory       = "memory"
	MetricHeap         = "heap"
	MetricCPU          = "cpu"
	MetricDisk         = "disk"
	MetricResponseTime = "response_time"
	MetricErrorRate    = "error_rate"
)

// metricUnit returns the unit suffix for threshold messages. Every metric
// is a percentage except response time, which is milliseconds.
func metricUnit(metric string) string {
	if metric == MetricResponseTime {
		return "ms"
	}
	return "%"
}
