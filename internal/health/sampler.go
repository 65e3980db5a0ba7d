// Package health samples process and host metrics on a fixed interval and
// forwards them to a recorder for threshold evaluation.
package health

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Sample is one health snapshot. MemoryPercent is resident set against
// total host memory; HeapPercent is Go heap in-use against total host
// memory. The two can diverge significantly, so both are reported.
// ResponseTimeMs and ErrorRatePercent come from the request path and
// cover the interval since the previous sample.
type Sample struct {
	MemoryPercent    float64   `json:"memory_percent"`
	HeapPercent      float64   `json:"heap_percent"`
	CPUPercent       float64   `json:"cpu_percent"`
	DiskPercent      float64   `json:"disk_percent"`
	ResponseTimeMs   float64   `json:"response_time_ms"`
	ErrorRatePercent float64   `json:"error_rate_percent"`
	UptimeSeconds    float64   `json:"uptime_seconds"`
	Timestamp        time.Time `json:"timestamp"`
}

// Recorder consumes samples. Implemented by the alert registry.
type Recorder interface {
	Evaluate(Sample)
}

// RequestSource supplies request-path readings for a sampling interval.
// Implemented by the pipeline's request stats; nil skips the readings.
type RequestSource interface {
	Snapshot() (avgResponseMillis, errorRatePercent float64)
}

// Sampler reads health snapshots on a timer. Metric reads fail
// independently: a failing read is skipped for that tick, never stalls or
// kills the loop.
type Sampler struct {
	interval time.Duration
	diskPath string
	recorder Recorder
	requests RequestSource
	logger   *slog.Logger
	started  time.Time
	proc     *process.Process
}

func NewSampler(interval time.Duration, diskPath string, recorder Recorder, requests RequestSource, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	if diskPath == "" {
		diskPath = "/"
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("process handle unavailable, resident memory will be skipped",
			slog.String("error", err.Error()))
		proc = nil
	}
	return &Sampler{
		interval: interval,
		diskPath: diskPath,
		recorder: recorder,
		requests: requests,
		logger:   logger,
		started:  time.Now(),
		proc:     proc,
	}
}

// Run samples until ctx is cancelled. A panic in one tick is recovered and
// logged; the next tick still fires.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Sampler) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("health sample panicked", slog.Any("panic", r))
		}
	}()
	s.recorder.Evaluate(s.Collect())
}

// Collect reads one sample. Each read is individually recoverable; missing
// readings are reported as zero.
func (s *Sampler) Collect() Sample {
	sample := Sample{
		UptimeSeconds: time.Since(s.started).Seconds(),
		Timestamp:     time.Now(),
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		s.logger.Warn("memory read failed", slog.String("error", err.Error()))
		vm = nil
	}

	if vm != nil && vm.Total > 0 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		sample.HeapPercent = float64(ms.HeapInuse) / float64(vm.Total) * 100

		if s.proc != nil {
			if mi, err := s.proc.MemoryInfo(); err == nil {
				sample.MemoryPercent = float64(mi.RSS) / float64(vm.Total) * 100
			} else {
				s.logger.Warn("resident memory read failed", slog.String("error", err.Error()))
			}
		}
	}

	// Zero interval reports usage since the previous call, so this never
	// blocks the tick.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		sample.CPUPercent = percents[0]
	} else if err != nil {
		s.logger.Warn("cpu read failed", slog.String("error", err.Error()))
	}

	if usage, err := disk.Usage(s.diskPath); err == nil {
		sample.DiskPercent = usage.UsedPercent
	} else {
		s.logger.Warn("disk read failed",
			slog.String("path", s.diskPath),
			slog.String("error", err.Error()))
	}

	if s.requests != nil {
		sample.ResponseTimeMs, sample.ErrorRatePercent = s.requests.Snapshot()
	}

	return sample
}
