// Package ratelimit implements fixed-window admission limiting per client
// key and a consecutive-failure blocker for authentication endpoints.
package ratelimit

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Class selects which limiter rule applies to a request.
type Class string

const (
	ClassGeneral Class = "general"
	ClassAuth    Class = "auth"
	ClassAPI     Class = "api"
)

// Rule is the per-class admission policy.
type Rule struct {
	Max    int
	Window time.Duration
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// window is one fixed bucket for a (key, class) pair. Counts are monotonic
// within a window: incremented before the handler runs, never decremented,
// so a client abort cannot strand a half-updated counter.
type window struct {
	mu    sync.Mutex
	start time.Time
	count int
}

// Limiter holds one fixed window per (clientKey, class). Window lookup is
// guarded by a map mutex; increments take only the per-window lock so
// different keys do not contend.
type Limiter struct {
	rules map[Class]Rule

	mu       sync.RWMutex
	windows  map[string]*window
	rejected map[Class]uint64
}

func NewLimiter(rules map[Class]Rule) *Limiter {
	copied := make(map[Class]Rule, len(rules))
	for c, r := range rules {
		copied[c] = r
	}
	return &Limiter{
		rules:    copied,
		windows:  make(map[string]*window),
		rejected: make(map[Class]uint64),
	}
}

// Allow records one request for key under class and decides admission.
// The (max+1)th request within a window is rejected with RetryAfter set to
// the time until the window resets, rounded up to at least one second.
func (l *Limiter) Allow(key string, class Class, now time.Time) Decision {
	rule, ok := l.rules[class]
	if !ok || rule.Max <= 0 {
		return Decision{Allowed: true}
	}

	w := l.window(windowKey(key, class), now)

	w.mu.Lock()
	if now.Sub(w.start) >= rule.Window {
		w.start = now
		w.count = 0
	}
	w.count++
	count := w.count
	start := w.start
	w.mu.Unlock()

	if count > rule.Max {
		l.mu.Lock()
		l.rejected[class]++
		l.mu.Unlock()

		retry := start.Add(rule.Window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Limit: rule.Max, RetryAfter: retry}
	}

	return Decision{Allowed: true, Limit: rule.Max, Remaining: rule.Max - count}
}

// window returns the bucket for key, creating it with now as the window
// start so injected clocks and Retry-After stay consistent.
func (l *Limiter) window(key string, now time.Time) *window {
	l.mu.RLock()
	w, ok := l.windows[key]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.windows[key]; ok {
		return w
	}
	w = &window{start: now}
	l.windows[key] = w
	return w
}

// Prune drops windows whose bucket ended before now. Called by the janitor
// to bound memory; pruning an active key just recreates it lazily.
func (l *Limiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var pruned int
	for key, w := range l.windows {
		class := classOf(key)
		rule, ok := l.rules[class]
		if !ok {
			delete(l.windows, key)
			pruned++
			continue
		}
		w.mu.Lock()
		stale := now.Sub(w.start) >= rule.Window
		w.mu.Unlock()
		if stale {
			delete(l.windows, key)
			pruned++
		}
	}
	return pruned
}

// Stats is a point-in-time view for the reporting endpoints.
type Stats struct {
	ActiveWindows int               `json:"active_windows"`
	Rejected      map[Class]uint64  `json:"rejected"`
	Rules         map[Class]RuleDoc `json:"rules"`
}

// RuleDoc is the JSON-friendly form of a Rule.
type RuleDoc struct {
	Max    int    `json:"max"`
	Window string `json:"window"`
}

func (l *Limiter) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rejected := make(map[Class]uint64, len(l.rejected))
	for c, n := range l.rejected {
		rejected[c] = n
	}
	rules := make(map[Class]RuleDoc, len(l.rules))
	for c, r := range l.rules {
		rules[c] = RuleDoc{Max: r.Max, Window: r.Window.String()}
	}
	return Stats{ActiveWindows: len(l.windows), Rejected: rejected, Rules: rules}
}

func windowKey(key string, class Class) string {
	return fmt.Sprintf("%s|%s", class, key)
}

func classOf(windowKey string) Class {
	class, _, _ := strings.Cut(windowKey, "|")
	return Class(class)
}
