package ratelimit

import (
	"sync"
	"time"
)

// FailureTracker hard-blocks clients that accumulate consecutive failed
// authentications within a rolling window. State machine per key:
// Normal -> (failures reach threshold) -> Blocked -> (window expires) ->
// Normal. A single success resets the counter.
type FailureTracker struct {
	threshold int
	window    time.Duration

	mu      sync.Mutex
	entries map[string]*failureEntry
}

type failureEntry struct {
	count        int
	first        time.Time
	blockedUntil time.Time
}

func NewFailureTracker(threshold int, window time.Duration) *FailureTracker {
	return &FailureTracker{
		threshold: threshold,
		window:    window,
		entries:   make(map[string]*failureEntry),
	}
}

// Fail records one failed authentication for key. Returns true when the
// failure tipped the key into the blocked state.
func (t *FailureTracker) Fail(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok || now.Sub(e.first) >= t.window {
		e = &failureEntry{first: now}
		t.entries[key] = e
	}

	e.count++
	if e.count >= t.threshold && e.blockedUntil.IsZero() {
		e.blockedUntil = e.first.Add(t.window)
		return true
	}
	return false
}

// Success resets the consecutive-failure count for key.
func (t *FailureTracker) Success(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// Blocked reports whether key is currently hard-blocked, and if so for how
// much longer (rounded up to at least one second).
func (t *FailureTracker) Blocked(key string, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok || e.blockedUntil.IsZero() || !e.blockedUntil.After(now) {
		return false, 0
	}

	retry := e.blockedUntil.Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return true, retry
}

// Prune drops entries whose window has fully elapsed.
func (t *FailureTracker) Prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pruned int
	for key, e := range t.entries {
		if now.Sub(e.first) >= t.window {
			delete(t.entries, key)
			pruned++
		}
	}
	return pruned
}
