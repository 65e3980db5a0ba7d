package health

import (
	"context"
	"testing"
	"time"
)

type recorderFunc func(Sample)

func (f recorderFunc) Evaluate(s Sample) { f(s) }

func TestCollect(t *testing.T) {
	s := NewSampler(time.Second, "/", recorderFunc(func(Sample) {}), nil, nil)

	sample := s.Collect()
	if sample.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
	if sample.UptimeSeconds < 0 {
		t.Errorf("uptime = %f", sample.UptimeSeconds)
	}
	if sample.HeapPercent < 0 || sample.HeapPercent > 100 {
		t.Errorf("heap percent = %f", sample.HeapPercent)
	}
	if sample.MemoryPercent < 0 || sample.MemoryPercent > 100 {
		t.Errorf("memory percent = %f", sample.MemoryPercent)
	}
}

type sourceFunc func() (float64, float64)

func (f sourceFunc) Snapshot() (float64, float64) { return f() }

func TestCollectIncludesRequestReadings(t *testing.T) {
	source := sourceFunc(func() (float64, float64) { return 1250, 7.5 })
	s := NewSampler(time.Second, "/", recorderFunc(func(Sample) {}), source, nil)

	sample := s.Collect()
	if sample.ResponseTimeMs != 1250 {
		t.Errorf("response time = %f, want 1250", sample.ResponseTimeMs)
	}
	if sample.ErrorRatePercent != 7.5 {
		t.Errorf("error rate = %f, want 7.5", sample.ErrorRatePercent)
	}
}

func TestRunForwardsSamples(t *testing.T) {
	got := make(chan Sample, 1)
	s := NewSampler(10*time.Millisecond, "/", recorderFunc(func(sample Sample) {
		select {
		case got <- sample:
		default:
		}
	}), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case sample := <-got:
		if sample.Timestamp.IsZero() {
			t.Error("forwarded sample has no timestamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no sample forwarded")
	}
}

func TestRunSurvivesPanickingRecorder(t *testing.T) {
	ticks := make(chan struct{}, 4)
	s := NewSampler(10*time.Millisecond, "/", recorderFunc(func(Sample) {
		ticks <- struct{}{}
		panic("recorder blew up")
	}), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Two ticks arriving proves the loop outlived the first panic.
	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d never fired", i+1)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewSampler(5*time.Millisecond, "/", recorderFunc(func(Sample) {}), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
