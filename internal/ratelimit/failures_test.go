package ratelimit

import (
	"testing"
	"time"
)

func TestFailureTrackerBlocksAtThreshold(t *testing.T) {
	tr := NewFailureTracker(3, 15*time.Minute)
	now := time.Now()

	if tr.Fail("1.2.3.4", now) {
		t.Fatal("first failure should not block")
	}
	if tr.Fail("1.2.3.4", now.Add(time.Second)) {
		t.Fatal("second failure should not block")
	}
	if !tr.Fail("1.2.3.4", now.Add(2*time.Second)) {
		t.Fatal("third failure should tip into blocked")
	}

	blocked, retry := tr.Blocked("1.2.3.4", now.Add(3*time.Second))
	if !blocked {
		t.Fatal("client should be blocked")
	}
	if retry <= 0 {
		t.Errorf("retry = %v, want > 0", retry)
	}
}

func TestFailureTrackerSuccessResets(t *testing.T) {
	tr := NewFailureTracker(3, 15*time.Minute)
	now := time.Now()

	tr.Fail("1.2.3.4", now)
	tr.Fail("1.2.3.4", now)
	tr.Success("1.2.3.4")

	// Two more failures stay under the threshold after the reset.
	tr.Fail("1.2.3.4", now)
	tr.Fail("1.2.3.4", now)

	if blocked, _ := tr.Blocked("1.2.3.4", now); blocked {
		t.Fatal("client blocked despite success reset")
	}
}

func TestFailureTrackerUnblocksWhenWindowExpires(t *testing.T) {
	tr := NewFailureTracker(2, 10*time.Minute)
	now := time.Now()

	tr.Fail("1.2.3.4", now)
	tr.Fail("1.2.3.4", now)

	if blocked, _ := tr.Blocked("1.2.3.4", now.Add(5*time.Minute)); !blocked {
		t.Fatal("client should still be blocked mid-window")
	}
	if blocked, _ := tr.Blocked("1.2.3.4", now.Add(10*time.Minute)); blocked {
		t.Fatal("client should unblock when the window expires")
	}
}

func TestFailureTrackerWindowRollsOver(t *testing.T) {
	tr := NewFailureTracker(3, 10*time.Minute)
	now := time.Now()

	tr.Fail("1.2.3.4", now)
	tr.Fail("1.2.3.4", now)

	// Failures in a fresh window start counting from zero.
	if tr.Fail("1.2.3.4", now.Add(11*time.Minute)) {
		t.Fatal("stale failures should not count toward the threshold")
	}
}

func TestFailureTrackerKeysIndependent(t *testing.T) {
	tr := NewFailureTracker(2, 10*time.Minute)
	now := time.Now()

	tr.Fail("1.2.3.4", now)
	tr.Fail("1.2.3.4", now)

	if blocked, _ := tr.Blocked("5.6.7.8", now); blocked {
		t.Fatal("unrelated key blocked")
	}
}

func TestFailureTrackerPrune(t *testing.T) {
	tr := NewFailureTracker(2, 10*time.Minute)
	now := time.Now()

	tr.Fail("1.2.3.4", now)
	tr.Fail("5.6.7.8", now)

	if pruned := tr.Prune(now.Add(11 * time.Minute)); pruned != 2 {
		t.Errorf("pruned = %d, want 2", pruned)
	}
}
