package registry

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/pipgrid/internal/platform"
	"github.com/1broseidon/pipgrid/internal/platform/platformtest"
)

func newFixture(t *testing.T, ids ...platform.WindowID) (*Registry, *platformtest.Backend) {
	t.Helper()
	fake := platformtest.New()
	for _, id := range ids {
		fake.AddWindow(id, int(id)+1000, "win")
	}
	return New(fake), fake
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdd_ResolvesMetadata(t *testing.T) {
	reg, _ := newFixture(t, 7)

	w, err := reg.Add(7)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if w.OwnerPID != 1007 {
		t.Fatalf("expected pid 1007, got %d", w.OwnerPID)
	}
	if w.DisplayName != "win" {
		t.Fatalf("expected title %q, got %q", "win", w.DisplayName)
	}
	if w.OrderIndex != 0 {
		t.Fatalf("expected order 0, got %d", w.OrderIndex)
	}
}

func TestAdd_Rejections(t *testing.T) {
	reg, fake := newFixture(t, 1, 2)
	if _, err := reg.Add(1); err != nil {
		t.Fatalf("add: %v", err)
	}
	fake.Kill(2)

	tests := []struct {
		name   string
		handle platform.WindowID
		want   error
	}{
		{"duplicate", 1, ErrAlreadyMonitored},
		{"dead window", 2, ErrInvalidHandle},
		{"unknown window", 99, ErrInvalidHandle},
		{"zero handle", 0, ErrInvalidHandle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Add(tt.handle)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Add(%d) error = %v, want %v", tt.handle, err, tt.want)
			}
		})
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", reg.Len())
	}
}

func TestRemove_IdempotentSingleEvent(t *testing.T) {
	reg, _ := newFixture(t, 1, 2, 3)
	for _, id := range []platform.WindowID{1, 2, 3} {
		if _, err := reg.Add(id); err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
	}

	var mu sync.Mutex
	removed := 0
	reg.Subscribe(func(ev Event) {
		if ev.Kind == EventRemoved {
			mu.Lock()
			removed++
			mu.Unlock()
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Remove(2, ReasonUser)
		}()
	}
	wg.Wait()

	if removed != 1 {
		t.Fatalf("expected exactly one removal event, got %d", removed)
	}
	got := reg.Handles()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("expected order [1 3], got %v", got)
	}
	if w, _ := reg.Get(3); w.OrderIndex != 1 {
		t.Fatalf("expected compacted order index 1, got %d", w.OrderIndex)
	}
}

func TestMove_SwapsAdjacent(t *testing.T) {
	reg, _ := newFixture(t, 1, 2, 3)
	for _, id := range []platform.WindowID{1, 2, 3} {
		if _, err := reg.Add(id); err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
	}

	tests := []struct {
		name    string
		handle  platform.WindowID
		dir     Direction
		moved   bool
		wantOrd []platform.WindowID
	}{
		{"middle up", 2, Up, true, []platform.WindowID{2, 1, 3}},
		{"top up is noop", 2, Up, false, []platform.WindowID{2, 1, 3}},
		{"first down", 2, Down, true, []platform.WindowID{1, 2, 3}},
		{"last down is noop", 3, Down, false, []platform.WindowID{1, 2, 3}},
		{"last up", 3, Up, true, []platform.WindowID{1, 3, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			moved, err := reg.Move(tt.handle, tt.dir)
			if err != nil {
				t.Fatalf("move: %v", err)
			}
			if moved != tt.moved {
				t.Fatalf("moved = %v, want %v", moved, tt.moved)
			}
			got := reg.Handles()
			for i := range tt.wantOrd {
				if got[i] != tt.wantOrd[i] {
					t.Fatalf("order = %v, want %v", got, tt.wantOrd)
				}
			}
		})
	}

	if _, err := reg.Move(42, Up); !errors.Is(err, ErrNotMonitored) {
		t.Fatalf("expected ErrNotMonitored, got %v", err)
	}
}

func TestSetVisualState_EmitsOnChangeOnly(t *testing.T) {
	reg, _ := newFixture(t, 1)
	if _, err := reg.Add(1); err != nil {
		t.Fatalf("add: %v", err)
	}

	var events []Event
	reg.Subscribe(func(ev Event) { events = append(events, ev) })

	reg.SetVisualState(1, platform.StateMinimized)
	reg.SetVisualState(1, platform.StateMinimized)
	reg.SetVisualState(1, platform.StateRestored)

	if len(events) != 2 {
		t.Fatalf("expected 2 state events, got %d", len(events))
	}
	if events[0].Previous != platform.StateRestored || events[0].Window.VisualState != platform.StateMinimized {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
}

func TestPoller_RemovesAfterGoneThreshold(t *testing.T) {
	reg, fake := newFixture(t, 1, 2)
	for _, id := range []platform.WindowID{1, 2} {
		if _, err := reg.Add(id); err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
	}

	var removals []Event
	reg.Subscribe(func(ev Event) {
		if ev.Kind == EventRemoved {
			removals = append(removals, ev)
		}
	})

	p := NewPoller(PollerConfig{Interval: time.Hour, GoneThreshold: 3, Logger: quietLogger()}, reg, fake)
	fake.Kill(1)

	p.PollNow()
	p.PollNow()
	if !reg.Contains(1) {
		t.Fatalf("window removed before threshold")
	}
	p.PollNow()
	if reg.Contains(1) {
		t.Fatalf("window still monitored after 3 failed checks")
	}
	p.PollNow()

	if len(removals) != 1 {
		t.Fatalf("expected exactly one removal event, got %d", len(removals))
	}
	if removals[0].Reason != ReasonWindowGone {
		t.Fatalf("expected reason %v, got %v", ReasonWindowGone, removals[0].Reason)
	}
	if !reg.Contains(2) {
		t.Fatalf("live window should remain")
	}
}

func TestPoller_RecoveryResetsStreak(t *testing.T) {
	reg, fake := newFixture(t, 1)
	if _, err := reg.Add(1); err != nil {
		t.Fatalf("add: %v", err)
	}
	p := NewPoller(PollerConfig{GoneThreshold: 3, Logger: quietLogger()}, reg, fake)

	fake.Kill(1)
	p.PollNow()
	p.PollNow()
	fake.AddWindow(1, 1001, "win")
	p.PollNow()
	fake.Kill(1)
	p.PollNow()
	p.PollNow()

	if !reg.Contains(1) {
		t.Fatalf("non-consecutive failures must not remove the window")
	}
}

func TestPoller_PublishesState(t *testing.T) {
	reg, fake := newFixture(t, 1)
	if _, err := reg.Add(1); err != nil {
		t.Fatalf("add: %v", err)
	}
	p := NewPoller(PollerConfig{Logger: quietLogger()}, reg, fake)

	fake.SetState(1, platform.StateMinimized)
	p.PollNow()

	w, _ := reg.Get(1)
	if w.VisualState != platform.StateMinimized {
		t.Fatalf("expected minimized, got %v", w.VisualState)
	}
}

func TestReportSuspect_NeverBlocks(t *testing.T) {
	reg, _ := newFixture(t)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			reg.ReportSuspect(1)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("ReportSuspect blocked")
	}
}
