// Package board runs the presentation loop: it owns the grid layout and
// the focus coordinator, and publishes an immutable Snapshot of every tile
// on each render tick.
package board

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1broseidon/pipgrid/internal/capture"
	"github.com/1broseidon/pipgrid/internal/eventlog"
	"github.com/1broseidon/pipgrid/internal/focus"
	"github.com/1broseidon/pipgrid/internal/platform"
	"github.com/1broseidon/pipgrid/internal/registry"
	"github.com/1broseidon/pipgrid/internal/resource"
	"github.com/1broseidon/pipgrid/internal/thumbcache"
	"github.com/1broseidon/pipgrid/internal/tiling"
)

// ErrStopped is returned by commands issued after Run has exited.
var ErrStopped = errors.New("board is not running")

const maxNotices = 16

// CaptureControl is the slice of the capture engine the board drives.
type CaptureControl interface {
	focus.CaptureControl
	SetMovieMode(on bool)
	SetPaused(paused bool)
	Stats(handle platform.WindowID) (capture.Stats, bool)
}

// Frames is the read side of the thumbnail cache plus its cell size.
type Frames interface {
	Get(handle platform.WindowID) (*thumbcache.Frame, bool)
	SetCellSize(width, height int) bool
	Rescale() int
}

// Samples returns the latest CPU sample for a window.
type Samples interface {
	Sample(handle platform.WindowID) (resource.CpuSample, bool)
}

// Foreground reports the window that currently has input focus.
type Foreground interface {
	ActiveWindow() (platform.WindowID, error)
}

// Settings are the initial presentation settings.
type Settings struct {
	Columns        int
	Layout         tiling.Options
	ViewportWidth  int
	ViewportHeight int
	AutoMinimize   bool
	MovieMode      bool
	Paused         bool

	RenderInterval time.Duration
	// FocusInterval is how often the foreground window is polled while a
	// window is expanded.
	FocusInterval time.Duration
	// IgnoreForeground reports windows whose activation must not collapse
	// the expanded window.
	IgnoreForeground func(platform.WindowID) bool

	Logger *slog.Logger
	Events *eventlog.Logger
}

// Deps are the components the board reads from and commands.
type Deps struct {
	Registry   *registry.Registry
	Commander  focus.Commander
	Capture    CaptureControl
	Frames     Frames
	Samples    Samples
	Foreground Foreground
}

// Tile is one cell of the grid as of a render tick.
type Tile struct {
	ID          platform.WindowID
	Title       string
	PID         int
	OrderIndex  int
	Cell        tiling.GridCell
	VisualState platform.VisualState
	Expanded    bool

	// Scaled is nil while Placeholder is set. Placement is relative to
	// the cell origin.
	Scaled      *image.RGBA
	Placement   image.Rectangle
	Placeholder bool
	CapturedAt  time.Time

	CPU       resource.CpuSample
	Cadence   time.Duration
	Captures  uint64
	Failures  uint64
	Skipped   uint64
	Suspended bool
}

// Notice is a user-visible message, such as a window dropped for resource
// exhaustion.
type Notice struct {
	At      time.Time
	Window  platform.WindowID
	Message string
}

// Snapshot is immutable once published.
type Snapshot struct {
	Seq            uint64
	RenderedAt     time.Time
	Tiles          []Tile
	Columns        int
	CellWidth      int
	CellHeight     int
	ViewportWidth  int
	ViewportHeight int
	Focus          focus.State
	AutoMinimize   bool
	MovieMode      bool
	Paused         bool
	Notices        []Notice
}

// Tile returns the tile for handle.
func (s *Snapshot) Tile(handle platform.WindowID) (Tile, bool) {
	for _, t := range s.Tiles {
		if t.ID == handle {
			return t, true
		}
	}
	return Tile{}, false
}

type request struct {
	fn   func() error
	done chan error
}

// Board is the presentation loop. All layout and focus state is owned by
// the Run goroutine; other goroutines interact through commands and
// Snapshot.
type Board struct {
	deps   Deps
	coord  *focus.Coordinator
	logger *slog.Logger
	events *eventlog.Logger
	now    func() time.Time

	renderInterval time.Duration
	focusInterval  time.Duration

	requests chan request
	wake     chan struct{}
	stopped  chan struct{}
	snapshot atomic.Pointer[Snapshot]

	pendingMu sync.Mutex
	pending   []registry.Event
	queued    []Notice

	// Owned by the Run goroutine.
	columns   int
	opts      tiling.Options
	viewportW int
	viewportH int
	movie     bool
	paused    bool
	cells     map[platform.WindowID]tiling.GridCell
	cellSize  image.Point
	notices   []Notice
	dirty     bool
	seq       uint64
}

// New creates a board and subscribes it to registry events. Call Run to
// start the loop.
func New(settings Settings, deps Deps) *Board {
	logger := settings.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cols := settings.Columns
	if tiling.ValidateColumns(cols) != nil {
		cols = tiling.MaxColumns
	}
	render := settings.RenderInterval
	if render <= 0 {
		render = time.Second / 30
	}
	focusEvery := settings.FocusInterval
	if focusEvery <= 0 {
		focusEvery = 250 * time.Millisecond
	}

	coord := focus.New(deps.Commander, deps.Capture, settings.AutoMinimize, logger)
	coord.Ignore = settings.IgnoreForeground

	b := &Board{
		deps:           deps,
		coord:          coord,
		logger:         logger,
		events:         settings.Events,
		now:            time.Now,
		renderInterval: render,
		focusInterval:  focusEvery,
		requests:       make(chan request),
		wake:           make(chan struct{}, 1),
		stopped:        make(chan struct{}),
		columns:        cols,
		opts:           settings.Layout,
		viewportW:      settings.ViewportWidth,
		viewportH:      settings.ViewportHeight,
		movie:          settings.MovieMode,
		paused:         settings.Paused,
		cells:          make(map[platform.WindowID]tiling.GridCell),
		dirty:          true,
	}
	deps.Capture.SetMovieMode(settings.MovieMode)
	deps.Capture.SetPaused(settings.Paused)
	deps.Registry.Subscribe(b.enqueue)

	b.relayout()
	b.render()
	return b
}

// Snapshot returns the most recently published snapshot.
func (b *Board) Snapshot() *Snapshot {
	return b.snapshot.Load()
}

// Notify queues a notice from any goroutine.
func (b *Board) Notify(handle platform.WindowID, message string) {
	b.pendingMu.Lock()
	b.queued = append(b.queued, Notice{At: b.now(), Window: handle, Message: message})
	b.pendingMu.Unlock()
	b.signal()
}

// enqueue is the registry listener. It runs on whichever goroutine changed
// the registry, so it must not block.
func (b *Board) enqueue(ev registry.Event) {
	b.pendingMu.Lock()
	b.pending = append(b.pending, ev)
	b.pendingMu.Unlock()
	b.signal()
}

func (b *Board) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Run processes commands, registry events and render ticks. Blocks until
// context is cancelled.
func (b *Board) Run(ctx context.Context) {
	defer close(b.stopped)

	render := time.NewTicker(b.renderInterval)
	defer render.Stop()
	foreground := time.NewTicker(b.focusInterval)
	defer foreground.Stop()

	b.logger.Info("board started", "columns", b.columns, "render_interval", b.renderInterval)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("board stopped")
			return
		case req := <-b.requests:
			err := b.guard(req.fn)
			b.drain()
			b.render()
			req.done <- err
		case <-b.wake:
			b.drain()
		case <-foreground.C:
			b.pollForeground()
		case <-render.C:
			b.render()
		}
	}
}

func (b *Board) exec(ctx context.Context, fn func() error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case b.requests <- req:
	case <-b.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Board) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("board command panic", "panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return fn()
}

// AddWindow starts monitoring handle.
func (b *Board) AddWindow(ctx context.Context, handle platform.WindowID) (registry.MonitoredWindow, error) {
	var added registry.MonitoredWindow
	err := b.exec(ctx, func() error {
		w, err := b.deps.Registry.Add(handle)
		if err != nil {
			return err
		}
		added = w
		return nil
	})
	return added, err
}

// RemoveWindow stops monitoring handle.
func (b *Board) RemoveWindow(ctx context.Context, handle platform.WindowID) error {
	return b.exec(ctx, func() error {
		if !b.deps.Registry.Remove(handle, registry.ReasonUser) {
			return registry.ErrNotMonitored
		}
		return nil
	})
}

// Reorder moves handle one slot in dir. It reports whether anything moved.
func (b *Board) Reorder(ctx context.Context, handle platform.WindowID, dir registry.Direction) (bool, error) {
	var moved bool
	err := b.exec(ctx, func() error {
		ok, err := b.deps.Registry.Move(handle, dir)
		moved = ok
		return err
	})
	return moved, err
}

// Click expands or collapses handle and returns the resulting focus state.
func (b *Board) Click(ctx context.Context, handle platform.WindowID) (focus.State, error) {
	var state focus.State
	err := b.exec(ctx, func() error {
		if !b.deps.Registry.Contains(handle) {
			return registry.ErrNotMonitored
		}
		before := b.coord.State()
		err := b.coord.Click(handle)
		state = b.coord.State()
		b.logFocus(before, state)
		return err
	})
	return state, err
}

// SetColumnCount changes the grid width.
func (b *Board) SetColumnCount(ctx context.Context, n int) error {
	return b.exec(ctx, func() error {
		if err := tiling.ValidateColumns(n); err != nil {
			return err
		}
		if n != b.columns {
			b.columns = n
			b.dirty = true
			b.events.Log(eventlog.ActionSettings, 0, map[string]any{"columns": n})
		}
		return nil
	})
}

// SetLayoutOptions replaces gap, aspect and width clamps.
func (b *Board) SetLayoutOptions(ctx context.Context, opts tiling.Options) error {
	return b.exec(ctx, func() error {
		b.opts = opts
		b.dirty = true
		return nil
	})
}

// SetViewport sets the area the grid is laid out in.
func (b *Board) SetViewport(ctx context.Context, width, height int) error {
	return b.exec(ctx, func() error {
		if width <= 0 || height <= 0 {
			return fmt.Errorf("invalid viewport %dx%d", width, height)
		}
		if width != b.viewportW || height != b.viewportH {
			b.viewportW, b.viewportH = width, height
			b.dirty = true
		}
		return nil
	})
}

// SetMovieMode switches capture between the normal and reduced rate.
func (b *Board) SetMovieMode(ctx context.Context, on bool) error {
	return b.exec(ctx, func() error {
		if on != b.movie {
			b.movie = on
			b.deps.Capture.SetMovieMode(on)
			b.events.Log(eventlog.ActionSettings, 0, map[string]any{"movie_mode": on})
		}
		return nil
	})
}

// SetAutoMinimize changes the coordinator's minimize policy.
func (b *Board) SetAutoMinimize(ctx context.Context, on bool) error {
	return b.exec(ctx, func() error {
		if on != b.coord.AutoMinimize() {
			b.coord.SetAutoMinimize(on)
			b.events.Log(eventlog.ActionSettings, 0, map[string]any{"auto_minimize": on})
		}
		return nil
	})
}

// SetPaused stops or restarts capture for every window.
func (b *Board) SetPaused(ctx context.Context, paused bool) error {
	return b.exec(ctx, func() error {
		if paused != b.paused {
			b.paused = paused
			b.deps.Capture.SetPaused(paused)
			b.events.Log(eventlog.ActionSettings, 0, map[string]any{"paused": paused})
		}
		return nil
	})
}

// drain applies queued registry events and notices.
func (b *Board) drain() {
	b.pendingMu.Lock()
	events := b.pending
	queued := b.queued
	b.pending = nil
	b.queued = nil
	b.pendingMu.Unlock()

	for _, n := range queued {
		b.addNotice(n)
	}

	for _, ev := range events {
		w := ev.Window
		switch ev.Kind {
		case registry.EventAdded:
			b.dirty = true
			b.events.Log(eventlog.ActionAdded, uint32(w.Handle), map[string]any{"title": w.DisplayName, "pid": w.OwnerPID})

		case registry.EventRemoved:
			b.dirty = true
			b.coord.WindowRemoved(w.Handle)
			delete(b.cells, w.Handle)
			action := eventlog.ActionRemoved
			if ev.Reason == registry.ReasonWindowGone {
				action = eventlog.ActionGone
			}
			b.events.Log(action, uint32(w.Handle), map[string]any{"title": w.DisplayName, "reason": ev.Reason.String()})
			if ev.Reason == registry.ReasonResourceExhausted {
				b.addNotice(Notice{
					At:      b.now(),
					Window:  w.Handle,
					Message: fmt.Sprintf("%s was removed: not enough memory to capture it", w.DisplayName),
				})
			}

		case registry.EventReordered:
			b.dirty = true
			b.events.Log(eventlog.ActionReordered, uint32(w.Handle), map[string]any{"index": w.OrderIndex})

		case registry.EventStateChanged:
			b.logger.Debug("window state changed", "window", w.Handle, "from", ev.Previous, "to", w.VisualState)
		}
	}
}

func (b *Board) addNotice(n Notice) {
	b.events.Log(eventlog.ActionNotice, uint32(n.Window), map[string]any{"message": n.Message})
	b.notices = append(b.notices, n)
	if len(b.notices) > maxNotices {
		b.notices = b.notices[len(b.notices)-maxNotices:]
	}
}

func (b *Board) pollForeground() {
	if b.deps.Foreground == nil || b.coord.State().Phase != focus.PhaseExpanded {
		return
	}
	active, err := b.deps.Foreground.ActiveWindow()
	if err != nil {
		b.logger.Debug("active window query failed", "error", err)
		return
	}
	before := b.coord.State()
	if b.coord.ForegroundChanged(active) {
		b.logFocus(before, b.coord.State())
		b.render()
	}
}

func (b *Board) logFocus(before, after focus.State) {
	if before == after {
		return
	}
	if before.Phase == focus.PhaseExpanded {
		b.events.Log(eventlog.ActionCollapsed, uint32(before.Window), map[string]any{"auto_minimize": b.coord.AutoMinimize()})
	}
	if after.Phase == focus.PhaseExpanded {
		b.events.Log(eventlog.ActionExpanded, uint32(after.Window), nil)
	}
}

// relayout recomputes every cell from the registry order. The cache is
// told about a new cell size so thumbnails are resampled once, here,
// rather than on every render.
func (b *Board) relayout() {
	ids := b.deps.Registry.Handles()
	b.cells = tiling.Layout(ids, b.columns, b.viewportW, b.viewportH, b.opts)

	w, h := tiling.CellSize(tiling.Rows(len(ids), b.columns), b.columns, b.viewportW, b.viewportH, b.opts)
	next := image.Pt(w, h)
	if next != b.cellSize {
		b.cellSize = next
		if b.deps.Frames.SetCellSize(w, h) {
			n := b.deps.Frames.Rescale()
			b.logger.Debug("cell size changed", "width", w, "height", h, "rescaled", n)
		}
	}
	b.dirty = false
}

// render publishes a new snapshot.
func (b *Board) render() {
	if b.dirty {
		b.relayout()
	}

	windows := b.deps.Registry.List()
	state := b.coord.State()
	tiles := make([]Tile, 0, len(windows))
	for _, w := range windows {
		cell, ok := b.cells[w.Handle]
		if !ok {
			// Registered after the last layout; picked up on the next drain.
			continue
		}
		t := Tile{
			ID:          w.Handle,
			Title:       w.DisplayName,
			PID:         w.OwnerPID,
			OrderIndex:  w.OrderIndex,
			Cell:        cell,
			VisualState: w.VisualState,
			Expanded:    state.Phase == focus.PhaseExpanded && state.Window == w.Handle,
			Placeholder: true,
		}
		if f, ok := b.deps.Frames.Get(w.Handle); ok && f.Scaled != nil {
			t.Scaled = f.Scaled
			t.Placement = f.Placement
			t.Placeholder = false
			t.CapturedAt = f.CapturedAt
		}
		if b.deps.Samples != nil {
			if s, ok := b.deps.Samples.Sample(w.Handle); ok {
				t.CPU = s
			}
		}
		if st, ok := b.deps.Capture.Stats(w.Handle); ok {
			t.Cadence = st.Cadence
			t.Captures = st.Captures
			t.Failures = st.Failures
			t.Skipped = st.Skipped
			t.Suspended = st.Suspended
		}
		tiles = append(tiles, t)
	}

	b.seq++
	notices := make([]Notice, len(b.notices))
	copy(notices, b.notices)
	b.snapshot.Store(&Snapshot{
		Seq:            b.seq,
		RenderedAt:     b.now(),
		Tiles:          tiles,
		Columns:        b.columns,
		CellWidth:      b.cellSize.X,
		CellHeight:     b.cellSize.Y,
		ViewportWidth:  b.viewportW,
		ViewportHeight: b.viewportH,
		Focus:          state,
		AutoMinimize:   b.coord.AutoMinimize(),
		MovieMode:      b.movie,
		Paused:         b.paused,
		Notices:        notices,
	})
}
