package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/health"
)

const dispatchTimeout = 5 * time.Second

// Sink receives structured notifications for newly created alerts.
type Sink interface {
	Notify(ctx context.Context, a Alert) error
}

// Registry is the stateful alert store. It is mutated both by the periodic
// health sampler and by request-triggered events, so all state is guarded
// by one mutex.
type Registry struct {
	thresholds       map[string]Threshold
	historyCap       int
	autoResolveAfter int
	sink             Sink
	logger           *slog.Logger

	mu            sync.Mutex
	active        map[string]*Alert // id -> alert
	history       map[Severity][]*Alert
	healthyStreak map[string]int
}

var _ health.Recorder = (*Registry)(nil)

// NewRegistry creates a registry. sink may be nil, which disables webhook
// dispatch. autoResolveAfter is the number of consecutive healthy samples
// after which a metric's active alerts resolve themselves; zero disables
// auto-resolution.
func NewRegistry(thresholds map[string]Threshold, historyCap, autoResolveAfter int, sink Sink, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	copied := make(map[string]Threshold, len(thresholds))
	for name, t := range thresholds {
		copied[name] = t
	}
	return &Registry{
		thresholds:       copied,
		historyCap:       historyCap,
		autoResolveAfter: autoResolveAfter,
		sink:             sink,
		logger:           logger,
		active:           make(map[string]*Alert),
		history:          make(map[Severity][]*Alert),
		healthyStreak:    make(map[string]int),
	}
}

// Evaluate compares a sample against the thresholds. Crossing a level
// raises an idempotent alert; severity escalates from warning to critical
// but never downgrades on a single healthy sample. A metric that stays
// below its warning level for autoResolveAfter consecutive samples has its
// active alerts resolved.
func (r *Registry) Evaluate(s health.Sample) {
	readings := map[string]float64{
		MetricMemory:       s.MemoryPercent,
		MetricHeap:         s.HeapPercent,
		MetricCPU:          s.CPUPercent,
		MetricDisk:         s.DiskPercent,
		MetricResponseTime: s.ResponseTimeMs,
		MetricErrorRate:    s.ErrorRatePercent,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for metric, value := range readings {
		t, ok := r.thresholds[metric]
		if !ok {
			continue
		}

		unit := metricUnit(metric)
		switch {
		case t.Critical > 0 && value >= t.Critical:
			r.healthyStreak[metric] = 0
			r.raiseLocked(metric, SeverityCritical,
				fmt.Sprintf("%s at %.1f%s (critical threshold %.1f%s)", metric, value, unit, t.Critical, unit),
				map[string]string{"value": fmt.Sprintf("%.1f", value)})
		case t.Warning > 0 && value >= t.Warning:
			r.healthyStreak[metric] = 0
			r.raiseLocked(metric, SeverityWarning,
				fmt.Sprintf("%s at %.1f%s (warning threshold %.1f%s)", metric, value, unit, t.Warning, unit),
				map[string]string{"value": fmt.Sprintf("%.1f", value)})
		default:
			r.healthyStreak[metric]++
			if r.autoResolveAfter > 0 && r.healthyStreak[metric] >= r.autoResolveAfter {
				r.resolveTypeLocked(metric)
				r.healthyStreak[metric] = 0
			}
		}
	}
}

// Event raises an ad-hoc alert from the request path (limiter rejections,
// repeated auth failures). Same idempotency rule as sampled alerts.
func (r *Registry) Event(alertType, message string, severity Severity, metadata map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raiseLocked(alertType, severity, message, metadata)
}

// raiseLocked creates an alert unless an unresolved alert of the same
// type+severity is already active. Caller holds r.mu.
func (r *Registry) raiseLocked(alertType string, severity Severity, message string, metadata map[string]string) {
	for _, a := range r.active {
		if a.Type == alertType && a.Severity == severity {
			return
		}
	}

	a := &Alert{
		ID:        uuid.New().String(),
		Type:      alertType,
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}
	r.active[a.ID] = a
	r.appendHistoryLocked(a)

	r.logger.Warn("alert raised",
		slog.String("alert_id", a.ID),
		slog.String("type", a.Type),
		slog.String("severity", string(a.Severity)),
		slog.String("message", a.Message),
	)

	r.dispatch(*a)
}

func (r *Registry) appendHistoryLocked(a *Alert) {
	bucket := append(r.history[a.Severity], a)
	if r.historyCap > 0 && len(bucket) > r.historyCap {
		bucket = bucket[len(bucket)-r.historyCap:]
	}
	r.history[a.Severity] = bucket
}

// Resolve marks an alert resolved. Idempotent; returns false when the id
// is unknown.
func (r *Registry) Resolve(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.active[id]
	if !ok {
		// Already resolved alerts stay in history; repeated resolution
		// succeeds without restamping.
		for _, bucket := range r.history {
			for _, h := range bucket {
				if h.ID == id {
					return true
				}
			}
		}
		return false
	}

	now := time.Now()
	a.Resolved = true
	a.ResolvedAt = &now
	delete(r.active, id)

	r.logger.Info("alert resolved", slog.String("alert_id", id), slog.String("type", a.Type))
	return true
}

// resolveTypeLocked resolves every active alert of the given type. Caller
// holds r.mu.
func (r *Registry) resolveTypeLocked(alertType string) {
	now := time.Now()
	for id, a := range r.active {
		if a.Type != alertType {
			continue
		}
		a.Resolved = true
		a.ResolvedAt = &now
		delete(r.active, id)
		r.logger.Info("alert auto-resolved",
			slog.String("alert_id", id),
			slog.String("type", alertType),
		)
	}
}

// dispatch notifies the sink without ever affecting the caller: it runs in
// its own goroutine with a bounded timeout, and failures are logged and
// swallowed.
func (r *Registry) dispatch(a Alert) {
	if r.sink == nil {
		return
	}
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("alert dispatch panicked", slog.Any("panic", rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		if err := r.sink.Notify(ctx, a); err != nil {
			r.logger.Warn("alert dispatch failed",
				slog.String("alert_id", a.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Snapshot is the read-only reporting view.
type Snapshot struct {
	Total    int                  `json:"total"`
	Active   int                  `json:"active"`
	Critical int                  `json:"critical"`
	Warnings int                  `json:"warnings"`
	Resolved int                  `json:"resolved"`
	Recent   map[Severity][]Alert `json:"recent"`
}

// Snapshot returns counts plus the most recent n entries per severity
// bucket. n <= 0 returns full buckets.
func (r *Registry) Snapshot(n int) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{Recent: make(map[Severity][]Alert)}
	for _, a := range r.active {
		snap.Active++
		switch a.Severity {
		case SeverityCritical:
			snap.Critical++
		case SeverityWarning:
			snap.Warnings++
		}
	}

	for severity, bucket := range r.history {
		snap.Total += len(bucket)
		for _, a := range bucket {
			if a.Resolved {
				snap.Resolved++
			}
		}

		start := 0
		if n > 0 && len(bucket) > n {
			start = len(bucket) - n
		}
		recent := make([]Alert, 0, len(bucket)-start)
		for _, a := range bucket[start:] {
			recent = append(recent, *a)
		}
		snap.Recent[severity] = recent
	}

	return snap
}
