package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func testRules() map[Class]Rule {
	return map[Class]Rule{
		ClassGeneral: {Max: 3, Window: time.Minute},
		ClassAuth:    {Max: 2, Window: 15 * time.Minute},
	}
}

func TestLimiterAllowsUpToMax(t *testing.T) {
	l := NewLimiter(testRules())
	now := time.Now()

	for i := 0; i < 3; i++ {
		d := l.Allow("1.2.3.4", ClassGeneral, now)
		if !d.Allowed {
			t.Fatalf("request %d unexpectedly rejected", i+1)
		}
		if d.Remaining != 3-(i+1) {
			t.Errorf("request %d: remaining = %d, want %d", i+1, d.Remaining, 3-(i+1))
		}
	}
}

func TestLimiterRejectsOverMax(t *testing.T) {
	l := NewLimiter(testRules())
	now := time.Now()

	for i := 0; i < 3; i++ {
		l.Allow("1.2.3.4", ClassGeneral, now)
	}

	d := l.Allow("1.2.3.4", ClassGeneral, now.Add(10*time.Second))
	if d.Allowed {
		t.Fatal("request over max was allowed")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", d.RetryAfter)
	}
	if d.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, want <= window", d.RetryAfter)
	}
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	l := NewLimiter(testRules())
	now := time.Now()

	for i := 0; i < 4; i++ {
		l.Allow("1.2.3.4", ClassGeneral, now)
	}

	d := l.Allow("1.2.3.4", ClassGeneral, now.Add(time.Minute))
	if !d.Allowed {
		t.Fatal("request after window elapsed was rejected")
	}
	if d.Remaining != 2 {
		t.Errorf("remaining after reset = %d, want 2", d.Remaining)
	}
}

func TestLimiterFirstWindowStartsAtInjectedClock(t *testing.T) {
	l := NewLimiter(testRules())
	// A clock far from wall time: the first window must anchor to it, not
	// to time.Now().
	now := time.Date(2030, time.March, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		l.Allow("1.2.3.4", ClassGeneral, now)
	}

	d := l.Allow("1.2.3.4", ClassGeneral, now.Add(30*time.Second))
	if d.Allowed {
		t.Fatal("request over max was allowed")
	}
	if d.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s until the injected window resets", d.RetryAfter)
	}

	// The same window still resets exactly one rule.Window after the first
	// injected instant.
	if d := l.Allow("1.2.3.4", ClassGeneral, now.Add(time.Minute)); !d.Allowed {
		t.Fatal("request after the injected window elapsed was rejected")
	}
}

func TestLimiterClassesAreIndependent(t *testing.T) {
	l := NewLimiter(testRules())
	now := time.Now()

	// Exhaust the stricter auth class.
	for i := 0; i < 3; i++ {
		l.Allow("1.2.3.4", ClassAuth, now)
	}
	if d := l.Allow("1.2.3.4", ClassAuth, now); d.Allowed {
		t.Fatal("auth class not exhausted")
	}

	// Same client still has general capacity.
	if d := l.Allow("1.2.3.4", ClassGeneral, now); !d.Allowed {
		t.Fatal("general class rejected while under its own max")
	}
}

func TestLimiterKeysDoNotInterfere(t *testing.T) {
	l := NewLimiter(testRules())
	now := time.Now()

	for i := 0; i < 4; i++ {
		l.Allow("1.2.3.4", ClassGeneral, now)
	}

	if d := l.Allow("5.6.7.8", ClassGeneral, now); !d.Allowed {
		t.Fatal("unrelated key rejected")
	}
}

func TestLimiterUnknownClassAllows(t *testing.T) {
	l := NewLimiter(testRules())
	if d := l.Allow("1.2.3.4", ClassAPI, time.Now()); !d.Allowed {
		t.Fatal("class without a rule should admit everything")
	}
}

func TestLimiterConcurrentIncrements(t *testing.T) {
	l := NewLimiter(map[Class]Rule{ClassGeneral: {Max: 1000, Window: time.Minute}})
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if l.Allow("1.2.3.4", ClassGeneral, now).Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// 2000 attempts against max 1000: no lost updates means exactly 1000
	// admissions.
	if allowed != 1000 {
		t.Errorf("allowed = %d, want exactly 1000", allowed)
	}
}

func TestLimiterStats(t *testing.T) {
	l := NewLimiter(testRules())
	now := time.Now()

	for i := 0; i < 5; i++ {
		l.Allow("1.2.3.4", ClassGeneral, now)
	}

	stats := l.Stats()
	if stats.ActiveWindows != 1 {
		t.Errorf("ActiveWindows = %d, want 1", stats.ActiveWindows)
	}
	if stats.Rejected[ClassGeneral] != 2 {
		t.Errorf("Rejected[general] = %d, want 2", stats.Rejected[ClassGeneral])
	}
}

func TestLimiterPrune(t *testing.T) {
	l := NewLimiter(testRules())
	now := time.Now()

	l.Allow("1.2.3.4", ClassGeneral, now)
	l.Allow("5.6.7.8", ClassGeneral, now)

	if pruned := l.Prune(now.Add(2 * time.Minute)); pruned != 2 {
		t.Errorf("pruned = %d, want 2", pruned)
	}
	if stats := l.Stats(); stats.ActiveWindows != 0 {
		t.Errorf("ActiveWindows after prune = %d, want 0", stats.ActiveWindows)
	}
}
