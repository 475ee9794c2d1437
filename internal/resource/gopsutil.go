package resource

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/1broseidon/pipgrid/internal/platform"
)

// GopsutilSampler implements platform.ProcessSampler using gopsutil.
// Percentages are normalised by the logical CPU count, so a process
// saturating every core reads 100.
type GopsutilSampler struct {
	cores float64

	mu    sync.Mutex
	procs map[int]*cachedProcess
}

// cachedProcess serialises Percent calls; gopsutil keeps the previous CPU
// times on the Process without locking.
type cachedProcess struct {
	mu sync.Mutex
	p  *process.Process
}

var _ platform.ProcessSampler = (*GopsutilSampler)(nil)

// NewGopsutilSampler creates a sampler.
func NewGopsutilSampler() *GopsutilSampler {
	cores, err := cpu.Counts(true)
	if err != nil || cores <= 0 {
		cores = runtime.NumCPU()
	}
	return &GopsutilSampler{
		cores: float64(cores),
		procs: make(map[int]*cachedProcess),
	}
}

// CPUPercent returns usage since the previous call for pid. The first call
// for a pid only primes the counters and reports 0.
func (s *GopsutilSampler) CPUPercent(pid int) (float64, error) {
	tp, err := s.process(pid)
	if err != nil {
		return 0, err
	}
	tp.mu.Lock()
	defer tp.mu.Unlock()
	p := tp.p

	running, err := p.IsRunning()
	if err != nil || !running {
		s.Forget(pid)
		return 0, fmt.Errorf("pid %d: %w", pid, platform.ErrProcessGone)
	}

	pct, err := p.Percent(0)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			s.Forget(pid)
			return 0, fmt.Errorf("pid %d: %w", pid, platform.ErrProcessGone)
		}
		return 0, fmt.Errorf("pid %d: %w", pid, err)
	}
	return pct / s.cores, nil
}

// Forget drops the cached process handle for pid.
func (s *GopsutilSampler) Forget(pid int) {
	s.mu.Lock()
	delete(s.procs, pid)
	s.mu.Unlock()
}

func (s *GopsutilSampler) process(pid int) (*cachedProcess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tp, ok := s.procs[pid]; ok {
		return tp, nil
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("pid %d: %w", pid, platform.ErrProcessGone)
	}
	tp := &cachedProcess{p: p}
	s.procs[pid] = tp
	return tp, nil
}
