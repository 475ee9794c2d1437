// Package resource samples CPU usage of the processes owning monitored
// windows.
package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/pipgrid/internal/platform"
)

// CpuSample is one CPU reading. Available is false when the process could
// not be sampled; shells render that as "N/A".
type CpuSample struct {
	Percent   float64
	SampledAt time.Time
	Available bool
}

// String formats the sample for display.
func (s CpuSample) String() string {
	if !s.Available {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", s.Percent)
}

// Config holds configuration for the monitor.
type Config struct {
	Interval time.Duration
	// Concurrency bounds how many processes are sampled at once.
	Concurrency int
	Logger      *slog.Logger
}

type tracked struct {
	pid int
	gen uint64
}

// Monitor samples every tracked process on its own interval, independent
// of capture cadence.
type Monitor struct {
	sampler     platform.ProcessSampler
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
	now         func() time.Time

	mu      sync.Mutex
	tracked map[platform.WindowID]tracked
	gen     uint64

	samples sync.Map // platform.WindowID -> CpuSample
}

// NewMonitor creates a monitor over sampler.
func NewMonitor(cfg Config, sampler platform.ProcessSampler) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		sampler:     sampler,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
		tracked:     make(map[platform.WindowID]tracked),
	}
}

// Track starts sampling pid for handle. The sampler is primed the first
// time a pid is seen so the first periodic reading covers a full interval.
func (m *Monitor) Track(handle platform.WindowID, pid int) {
	m.mu.Lock()
	known := false
	for h, t := range m.tracked {
		if h != handle && t.pid == pid {
			known = true
			break
		}
	}
	m.gen++
	m.tracked[handle] = tracked{pid: pid, gen: m.gen}
	m.mu.Unlock()

	if pid <= 0 {
		m.samples.Store(handle, CpuSample{SampledAt: m.now()})
		return
	}
	if !known {
		_, _ = m.sampler.CPUPercent(pid)
	}
}

// Untrack stops sampling handle and drops its sample.
func (m *Monitor) Untrack(handle platform.WindowID) {
	m.mu.Lock()
	t, ok := m.tracked[handle]
	delete(m.tracked, handle)
	shared := false
	for _, other := range m.tracked {
		if other.pid == t.pid {
			shared = true
			break
		}
	}
	m.samples.Delete(handle)
	m.mu.Unlock()

	if ok && !shared && t.pid > 0 {
		m.sampler.Forget(t.pid)
	}
}

// Sample returns the latest reading. ok is false until the first pass
// after Track.
func (m *Monitor) Sample(handle platform.WindowID) (CpuSample, bool) {
	v, ok := m.samples.Load(handle)
	if !ok {
		return CpuSample{}, false
	}
	return v.(CpuSample), true
}

// Handles returns the tracked handles in ascending order.
func (m *Monitor) Handles() []platform.WindowID {
	m.mu.Lock()
	out := make([]platform.WindowID, 0, len(m.tracked))
	for h := range m.tracked {
		out = append(out, h)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Interval returns the sampling interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Run samples until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("resource monitor started", "interval", m.interval)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("resource monitor stopped")
			return
		case <-ticker.C:
			m.SampleNow(ctx)
		}
	}
}

type target struct {
	handle platform.WindowID
	gen    uint64
}

// SampleNow runs a single sampling pass. Each pid is sampled once and the
// reading is shared by every window it owns. One process failing records an
// unavailable sample for its windows only.
func (m *Monitor) SampleNow(ctx context.Context) {
	defer func() {
		if err := recover(); err != nil {
			m.logger.Error("resource monitor panic recovered", "error", err)
		}
	}()

	m.mu.Lock()
	byPID := make(map[int][]target, len(m.tracked))
	for h, t := range m.tracked {
		byPID[t.pid] = append(byPID[t.pid], target{handle: h, gen: t.gen})
	}
	m.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for pid, targets := range byPID {
		g.Go(func() error {
			sample := CpuSample{SampledAt: m.now()}
			if pid > 0 {
				pct, err := m.sampler.CPUPercent(pid)
				if err != nil {
					m.logger.Debug("cpu sample unavailable", "pid", pid, "windows", len(targets), "error", err)
				} else {
					sample.Percent = clamp(pct)
					sample.Available = true
				}
			}
			for _, t := range targets {
				m.store(t.handle, t.gen, sample)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// store publishes sample unless handle was untracked or re-tracked while
// the pass was running.
func (m *Monitor) store(handle platform.WindowID, gen uint64, sample CpuSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.tracked[handle]; !ok || cur.gen != gen {
		return
	}
	m.samples.Store(handle, sample)
}

func clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
