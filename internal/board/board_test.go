package board

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/pipgrid/internal/capture"
	"github.com/1broseidon/pipgrid/internal/eventlog"
	"github.com/1broseidon/pipgrid/internal/focus"
	"github.com/1broseidon/pipgrid/internal/platform"
	"github.com/1broseidon/pipgrid/internal/platform/platformtest"
	"github.com/1broseidon/pipgrid/internal/registry"
	"github.com/1broseidon/pipgrid/internal/resource"
	"github.com/1broseidon/pipgrid/internal/thumbcache"
	"github.com/1broseidon/pipgrid/internal/tiling"
)

type fakeCapture struct {
	mu        sync.Mutex
	suspended map[platform.WindowID]bool
	movie     bool
	paused    bool
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{suspended: make(map[platform.WindowID]bool)}
}

func (f *fakeCapture) Suspend(h platform.WindowID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended[h] = true
}

func (f *fakeCapture) Resume(h platform.WindowID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended[h] = false
}

func (f *fakeCapture) SetMovieMode(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movie = on
}

func (f *fakeCapture) SetPaused(p bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = p
}

func (f *fakeCapture) Stats(h platform.WindowID) (capture.Stats, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return capture.Stats{Cadence: 50 * time.Millisecond, Suspended: f.suspended[h]}, true
}

func (f *fakeCapture) isSuspended(h platform.WindowID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suspended[h]
}

type fakeSamples map[platform.WindowID]resource.CpuSample

func (f fakeSamples) Sample(h platform.WindowID) (resource.CpuSample, bool) {
	s, ok := f[h]
	return s, ok
}

type harness struct {
	backend *platformtest.Backend
	reg     *registry.Registry
	cache   *thumbcache.Cache
	capture *fakeCapture
	board   *Board
	events  *eventlog.Logger
	cancel  context.CancelFunc
}

func newHarness(t *testing.T, ids ...platform.WindowID) *harness {
	t.Helper()
	backend := platformtest.New()
	for _, id := range ids {
		backend.AddWindow(id, int(id)+100, "")
	}
	reg := registry.New(backend)
	cache := thumbcache.New(nil)
	reg.Subscribe(func(ev registry.Event) {
		switch ev.Kind {
		case registry.EventAdded:
			cache.Register(ev.Window.Handle)
		case registry.EventRemoved:
			cache.Evict(ev.Window.Handle)
		}
	})
	events, err := eventlog.New(eventlog.Config{Level: eventlog.LevelDebug})
	if err != nil {
		t.Fatalf("eventlog: %v", err)
	}
	capt := newFakeCapture()

	b := New(Settings{
		Columns:        4,
		Layout:         tiling.DefaultOptions(),
		ViewportWidth:  1536,
		ViewportHeight: 1000,
		AutoMinimize:   true,
		RenderInterval: 5 * time.Millisecond,
		FocusInterval:  5 * time.Millisecond,
		Events:         events,
	}, Deps{
		Registry:   reg,
		Commander:  backend,
		Capture:    capt,
		Frames:     cache,
		Samples:    fakeSamples{1: {Percent: 12.5, Available: true}},
		Foreground: backend,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	t.Cleanup(cancel)

	return &harness{backend: backend, reg: reg, cache: cache, capture: capt, board: b, events: events, cancel: cancel}
}

func ctxT(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAddWindowPublishesPlaceholderTile(t *testing.T) {
	h := newHarness(t, 1)

	w, err := h.board.AddWindow(ctxT(t), 1)
	if err != nil {
		t.Fatalf("AddWindow() error = %v", err)
	}
	if w.OrderIndex != 0 || w.OwnerPID != 101 {
		t.Fatalf("unexpected record %+v", w)
	}

	snap := h.board.Snapshot()
	tile, ok := snap.Tile(1)
	if !ok {
		t.Fatalf("expected tile for window 1 in %+v", snap.Tiles)
	}
	if !tile.Placeholder || tile.Scaled != nil {
		t.Fatalf("expected placeholder before first frame, got %+v", tile)
	}
	if !tile.CPU.Available || tile.CPU.Percent != 12.5 {
		t.Fatalf("expected CPU sample on tile, got %v", tile.CPU)
	}
	if tile.Cell.Rect.Width != snap.CellWidth || snap.CellWidth == 0 {
		t.Fatalf("tile cell %+v does not match cell width %d", tile.Cell, snap.CellWidth)
	}
	if tile.Cadence != 50*time.Millisecond {
		t.Fatalf("expected cadence from capture stats, got %v", tile.Cadence)
	}
}

func TestAddWindowRejections(t *testing.T) {
	h := newHarness(t, 1)

	if _, err := h.board.AddWindow(ctxT(t), 99); !errors.Is(err, registry.ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
	if _, err := h.board.AddWindow(ctxT(t), 1); err != nil {
		t.Fatalf("AddWindow() error = %v", err)
	}
	if _, err := h.board.AddWindow(ctxT(t), 1); !errors.Is(err, registry.ErrAlreadyMonitored) {
		t.Fatalf("expected ErrAlreadyMonitored, got %v", err)
	}
	if got := len(h.board.Snapshot().Tiles); got != 1 {
		t.Fatalf("expected 1 tile, got %d", got)
	}
}

func TestFrameAppearsAfterPut(t *testing.T) {
	h := newHarness(t, 1)
	if _, err := h.board.AddWindow(ctxT(t), 1); err != nil {
		t.Fatalf("AddWindow() error = %v", err)
	}

	h.cache.Put(1, platformtest.Solid(640, 480, color.RGBA{R: 200, A: 255}), time.Now())

	waitFor(t, "scaled tile", func() bool {
		tile, ok := h.board.Snapshot().Tile(1)
		return ok && !tile.Placeholder && tile.Scaled != nil
	})
	snap := h.board.Snapshot()
	tile, _ := snap.Tile(1)
	if tile.Scaled.Bounds().Dx() != snap.CellWidth {
		t.Fatalf("scaled width %d, want %d", tile.Scaled.Bounds().Dx(), snap.CellWidth)
	}
}

func TestReorderSwapsCells(t *testing.T) {
	h := newHarness(t, 1, 2, 3)
	for _, id := range []platform.WindowID{1, 2, 3} {
		if _, err := h.board.AddWindow(ctxT(t), id); err != nil {
			t.Fatalf("AddWindow(%d) error = %v", id, err)
		}
	}

	before := h.board.Snapshot()
	moved, err := h.board.Reorder(ctxT(t), 3, registry.Up)
	if err != nil || !moved {
		t.Fatalf("Reorder() = %v, %v", moved, err)
	}
	after := h.board.Snapshot()

	t1, _ := after.Tile(1)
	t2, _ := after.Tile(2)
	t3, _ := after.Tile(3)
	old1, _ := before.Tile(1)
	old2, _ := before.Tile(2)
	old3, _ := before.Tile(3)
	if t1.Cell != old1.Cell {
		t.Fatalf("window 1 should not move: %+v -> %+v", old1.Cell, t1.Cell)
	}
	if t3.Cell != old2.Cell || t2.Cell != old3.Cell {
		t.Fatalf("expected windows 2 and 3 to swap cells")
	}

	moved, err = h.board.Reorder(ctxT(t), 1, registry.Up)
	if err != nil || moved {
		t.Fatalf("moving the first window up should be a no-op, got %v, %v", moved, err)
	}
}

func TestClickExpandsAndCollapses(t *testing.T) {
	h := newHarness(t, 1, 2)
	for _, id := range []platform.WindowID{1, 2} {
		if _, err := h.board.AddWindow(ctxT(t), id); err != nil {
			t.Fatalf("AddWindow(%d) error = %v", id, err)
		}
	}

	state, err := h.board.Click(ctxT(t), 1)
	if err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if state != (focus.State{Phase: focus.PhaseExpanded, Window: 1}) {
		t.Fatalf("unexpected state %v", state)
	}
	if !h.capture.isSuspended(1) {
		t.Fatalf("expected capture of window 1 suspended")
	}
	if tile, _ := h.board.Snapshot().Tile(1); !tile.Expanded {
		t.Fatalf("expected tile 1 marked expanded")
	}

	state, err = h.board.Click(ctxT(t), 2)
	if err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if state.Window != 2 || h.capture.isSuspended(1) || !h.capture.isSuspended(2) {
		t.Fatalf("expected focus to move to 2, got %v", state)
	}

	want := []string{"restore(1)", "minimize(1)", "restore(2)"}
	got := h.backend.Commands()
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("commands = %v, want %v", got, want)
		}
	}

	if _, err := h.board.Click(ctxT(t), 42); !errors.Is(err, registry.ErrNotMonitored) {
		t.Fatalf("expected ErrNotMonitored, got %v", err)
	}
}

func TestRemovingExpandedWindowForcesIdle(t *testing.T) {
	h := newHarness(t, 1)
	if _, err := h.board.AddWindow(ctxT(t), 1); err != nil {
		t.Fatalf("AddWindow() error = %v", err)
	}
	if _, err := h.board.Click(ctxT(t), 1); err != nil {
		t.Fatalf("Click() error = %v", err)
	}

	h.reg.Remove(1, registry.ReasonWindowGone)

	waitFor(t, "idle focus", func() bool {
		snap := h.board.Snapshot()
		return snap.Focus.Phase == focus.PhaseIdle && len(snap.Tiles) == 0
	})
	for _, c := range h.backend.Commands() {
		if c == "minimize(1)" {
			t.Fatalf("a vanished window must not be minimized, got %v", h.backend.Commands())
		}
	}
	if err := h.board.RemoveWindow(ctxT(t), 1); !errors.Is(err, registry.ErrNotMonitored) {
		t.Fatalf("expected ErrNotMonitored, got %v", err)
	}
}

func TestForegroundLossCollapses(t *testing.T) {
	h := newHarness(t, 1)
	if _, err := h.board.AddWindow(ctxT(t), 1); err != nil {
		t.Fatalf("AddWindow() error = %v", err)
	}
	if _, err := h.board.Click(ctxT(t), 1); err != nil {
		t.Fatalf("Click() error = %v", err)
	}

	h.backend.SetActive(77)

	waitFor(t, "collapse on foreground loss", func() bool {
		return h.board.Snapshot().Focus.Phase == focus.PhaseIdle
	})
	if h.capture.isSuspended(1) {
		t.Fatalf("expected capture resumed after collapse")
	}
}

func TestResourceExhaustionNotice(t *testing.T) {
	h := newHarness(t, 1)
	if _, err := h.board.AddWindow(ctxT(t), 1); err != nil {
		t.Fatalf("AddWindow() error = %v", err)
	}

	h.reg.Drop(1)

	waitFor(t, "notice", func() bool {
		return len(h.board.Snapshot().Notices) == 1
	})
	n := h.board.Snapshot().Notices[0]
	if n.Window != 1 {
		t.Fatalf("unexpected notice %+v", n)
	}
	if h.cache.Contains(1) {
		t.Fatalf("expected cache entry evicted")
	}
}

func TestSettingsCommands(t *testing.T) {
	h := newHarness(t, 1, 2, 3, 4, 5)
	for _, id := range []platform.WindowID{1, 2, 3, 4, 5} {
		if _, err := h.board.AddWindow(ctxT(t), id); err != nil {
			t.Fatalf("AddWindow(%d) error = %v", id, err)
		}
	}

	if err := h.board.SetColumnCount(ctxT(t), 2); err == nil {
		t.Fatalf("expected error for 2 columns")
	}
	if err := h.board.SetColumnCount(ctxT(t), 3); err != nil {
		t.Fatalf("SetColumnCount() error = %v", err)
	}
	snap := h.board.Snapshot()
	if snap.Columns != 3 {
		t.Fatalf("expected 3 columns, got %d", snap.Columns)
	}
	if tile, _ := snap.Tile(4); tile.Cell.Row != 1 || tile.Cell.Col != 0 {
		t.Fatalf("window 4 should wrap to row 1, got %+v", tile.Cell)
	}

	if err := h.board.SetMovieMode(ctxT(t), true); err != nil {
		t.Fatalf("SetMovieMode() error = %v", err)
	}
	if err := h.board.SetPaused(ctxT(t), true); err != nil {
		t.Fatalf("SetPaused() error = %v", err)
	}
	if err := h.board.SetAutoMinimize(ctxT(t), false); err != nil {
		t.Fatalf("SetAutoMinimize() error = %v", err)
	}
	snap = h.board.Snapshot()
	if !snap.MovieMode || !snap.Paused || snap.AutoMinimize {
		t.Fatalf("unexpected flags %+v", snap)
	}
	h.capture.mu.Lock()
	movie, paused := h.capture.movie, h.capture.paused
	h.capture.mu.Unlock()
	if !movie || !paused {
		t.Fatalf("expected capture engine to receive movie/pause")
	}

	if err := h.board.SetViewport(ctxT(t), 0, 100); err == nil {
		t.Fatalf("expected error for empty viewport")
	}
	if err := h.board.SetViewport(ctxT(t), 800, 600); err != nil {
		t.Fatalf("SetViewport() error = %v", err)
	}
	if snap := h.board.Snapshot(); snap.CellWidth != h.cache.CellSize().X {
		t.Fatalf("cache cell size %v does not follow layout %d", h.cache.CellSize(), snap.CellWidth)
	}

	if len(h.events.Recent(0)) == 0 {
		t.Fatalf("expected settings changes in the event log")
	}
}

func TestCommandsAfterStop(t *testing.T) {
	h := newHarness(t, 1)
	h.cancel()

	waitFor(t, "stop", func() bool {
		select {
		case <-h.board.stopped:
			return true
		default:
			return false
		}
	})
	if _, err := h.board.AddWindow(context.Background(), 1); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}
