package resource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/pipgrid/internal/platform"
)

type fakeSampler struct {
	mu      sync.Mutex
	values  map[int]float64
	gone    map[int]bool
	calls   map[int]int
	forgot  []int
	blockOn int
	release chan struct{}
}

func newFakeSampler() *fakeSampler {
	return &fakeSampler{
		values: make(map[int]float64),
		gone:   make(map[int]bool),
		calls:  make(map[int]int),
	}
}

func (f *fakeSampler) CPUPercent(pid int) (float64, error) {
	f.mu.Lock()
	f.calls[pid]++
	v, gone := f.values[pid], f.gone[pid]
	var release chan struct{}
	if f.blockOn == pid {
		release = f.release
	}
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if gone {
		return 0, fmt.Errorf("pid %d: %w", pid, platform.ErrProcessGone)
	}
	return v, nil
}

func (f *fakeSampler) Forget(pid int) {
	f.mu.Lock()
	f.forgot = append(f.forgot, pid)
	f.mu.Unlock()
}

func newTestMonitor(s platform.ProcessSampler) *Monitor {
	return NewMonitor(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, s)
}

func TestSampleNow_IsolatesFailures(t *testing.T) {
	s := newFakeSampler()
	s.values[10] = 12.5
	s.gone[20] = true
	s.values[30] = 250 // clamped

	m := newTestMonitor(s)
	m.Track(1, 10)
	m.Track(2, 20)
	m.Track(3, 30)
	m.SampleNow(context.Background())

	tests := []struct {
		handle    platform.WindowID
		available bool
		percent   float64
		text      string
	}{
		{1, true, 12.5, "12.5%"},
		{2, false, 0, "N/A"},
		{3, true, 100, "100.0%"},
	}
	for _, tt := range tests {
		got, ok := m.Sample(tt.handle)
		if !ok {
			t.Fatalf("handle %d: no sample", tt.handle)
		}
		if got.Available != tt.available || got.Percent != tt.percent {
			t.Errorf("handle %d: got %+v, want available=%v percent=%v", tt.handle, got, tt.available, tt.percent)
		}
		if got.String() != tt.text {
			t.Errorf("handle %d: String() = %q, want %q", tt.handle, got.String(), tt.text)
		}
	}
}

func TestTrack_PrimesSampler(t *testing.T) {
	s := newFakeSampler()
	m := newTestMonitor(s)
	m.Track(1, 42)

	if s.calls[42] != 1 {
		t.Fatalf("expected one priming call, got %d", s.calls[42])
	}
	if _, ok := m.Sample(1); ok {
		t.Fatalf("no sample expected before the first pass")
	}
}

func TestSampleNow_SharedPIDSampledOnce(t *testing.T) {
	s := newFakeSampler()
	s.values[10] = 40

	m := newTestMonitor(s)
	m.Track(1, 10)
	m.Track(2, 10)
	m.Track(3, 10)
	if s.calls[10] != 1 {
		t.Fatalf("expected a single priming call for a shared pid, got %d", s.calls[10])
	}

	m.SampleNow(context.Background())
	if s.calls[10] != 2 {
		t.Fatalf("expected one call per pass for a shared pid, got %d", s.calls[10]-1)
	}
	for _, h := range []platform.WindowID{1, 2, 3} {
		got, ok := m.Sample(h)
		if !ok || !got.Available || got.Percent != 40 {
			t.Errorf("handle %d: got %+v ok=%v, want 40%%", h, got, ok)
		}
	}
}

func TestTrack_UnknownPIDIsUnavailable(t *testing.T) {
	m := newTestMonitor(newFakeSampler())
	m.Track(1, 0)
	got, ok := m.Sample(1)
	if !ok || got.Available {
		t.Fatalf("expected unavailable sample, got %+v ok=%v", got, ok)
	}
}

func TestUntrack_RemovesSampleAndForgets(t *testing.T) {
	s := newFakeSampler()
	s.values[10] = 5
	m := newTestMonitor(s)
	m.Track(1, 10)
	m.Track(2, 10)
	m.SampleNow(context.Background())

	m.Untrack(1)
	if _, ok := m.Sample(1); ok {
		t.Fatalf("sample should be dropped after untrack")
	}
	if len(s.forgot) != 0 {
		t.Fatalf("pid still shared by handle 2, must not be forgotten")
	}

	if got := m.Handles(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("Handles() = %v, want [2]", got)
	}

	m.Untrack(2)
	if len(s.forgot) != 1 || s.forgot[0] != 10 {
		t.Fatalf("expected pid 10 forgotten, got %v", s.forgot)
	}
}

func TestUntrack_DuringPassLeavesNoOrphan(t *testing.T) {
	s := newFakeSampler()
	s.values[10] = 5

	m := newTestMonitor(s)
	m.Track(1, 10)

	s.mu.Lock()
	s.blockOn = 10
	s.release = make(chan struct{})
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.SampleNow(context.Background())
		close(done)
	}()

	// Wait until the pass is inside the sampler, then untrack.
	for {
		s.mu.Lock()
		n := s.calls[10]
		s.mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	m.Untrack(1)
	close(s.release)
	<-done

	if _, ok := m.Sample(1); ok {
		t.Fatalf("sample written after untrack")
	}
}
