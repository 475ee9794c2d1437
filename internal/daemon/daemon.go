// Package daemon assembles the capture pipeline, presentation loop and IPC
// server into one long-running process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/pipgrid/internal/board"
	"github.com/1broseidon/pipgrid/internal/capture"
	"github.com/1broseidon/pipgrid/internal/config"
	"github.com/1broseidon/pipgrid/internal/eventlog"
	"github.com/1broseidon/pipgrid/internal/hotkeys"
	"github.com/1broseidon/pipgrid/internal/ipc"
	"github.com/1broseidon/pipgrid/internal/platform"
	"github.com/1broseidon/pipgrid/internal/registry"
	"github.com/1broseidon/pipgrid/internal/resource"
	"github.com/1broseidon/pipgrid/internal/thumbcache"
	"github.com/1broseidon/pipgrid/internal/tiling"
)

const applyTimeout = 4 * time.Second

// errEventLoopExited is returned by Run when the X event loop stops on its
// own, which means the display connection is gone.
var errEventLoopExited = errors.New("display event loop exited")

// eventLooper is implemented by backends that dispatch window-system
// events (and therefore hotkeys) on a blocking loop.
type eventLooper interface {
	EventLoop()
	StopEventLoop()
}

// forgetter is implemented by backends that keep per-window capture state.
type forgetter interface {
	ForgetWindow(windowID platform.WindowID)
}

// Options tune how a Daemon is assembled.
type Options struct {
	// ConfigPath is re-read by Reload. Empty uses the default location.
	ConfigPath string
	// SocketPath overrides the runtime-dir IPC socket.
	SocketPath string
	// Sampler defaults to gopsutil.
	Sampler platform.ProcessSampler
	Logger  *slog.Logger
	// Events defaults to a log built from the logging section of cfg.
	Events *eventlog.Logger
	// FocusInterval overrides the expanded-window foreground poll.
	FocusInterval time.Duration
}

// Daemon owns every long-running component.
type Daemon struct {
	backend    platform.Backend
	logger     *slog.Logger
	events     *eventlog.Logger
	ownEvents  bool
	configPath string

	reg     *registry.Registry
	cache   *thumbcache.Cache
	engine  *capture.Engine
	monitor *resource.Monitor
	poller  *registry.Poller
	board   *board.Board
	server  *ipc.Server

	mu  sync.RWMutex
	cfg *config.Config
}

// New wires the components together. Nothing runs until Run.
func New(cfg *config.Config, backend platform.Backend, opts Options) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	filter, err := thumbcache.ParseFilter(cfg.ResampleFilter)
	if err != nil {
		return nil, err
	}
	width, height, err := resolveViewport(cfg.Viewport, backend)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		backend:    backend,
		logger:     logger,
		events:     opts.Events,
		configPath: opts.ConfigPath,
		cfg:        cfg,
	}
	if d.events == nil {
		lc := cfg.GetLoggingConfig()
		events, err := eventlog.New(eventlog.Config{
			Enabled:   lc.Enabled,
			Level:     eventlog.ParseLevel(cfg.LogLevel),
			FilePath:  lc.File,
			MaxSizeMB: lc.MaxSizeMB,
			MaxFiles:  lc.MaxFiles,
			RingSize:  lc.RingSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open event log: %w", err)
		}
		d.events = events
		d.ownEvents = true
	}

	sampler := opts.Sampler
	if sampler == nil {
		sampler = resource.NewGopsutilSampler()
	}

	d.reg = registry.New(backend)
	d.cache = thumbcache.New(filter)
	d.engine = capture.NewEngine(capture.Config{
		CaptureFPS:       cfg.CaptureFPS,
		MovieFPS:         cfg.MovieFPS,
		MovieMode:        cfg.MovieMode,
		FailureThreshold: cfg.FailureThreshold,
		Logger:           logger.With("component", "capture"),
		OnExhausted:      d.onExhausted,
	}, backend, d.cache, d.reg)
	d.monitor = resource.NewMonitor(resource.Config{
		Interval: cfg.CPUInterval(),
		Logger:   logger.With("component", "resource"),
	}, sampler)
	d.poller = registry.NewPoller(registry.PollerConfig{
		Interval:      cfg.LivenessInterval(),
		GoneThreshold: cfg.GoneThreshold,
		Logger:        logger.With("component", "liveness"),
	}, d.reg, backend)

	// Pipeline wiring runs before the board sees the event.
	d.reg.Subscribe(d.wire)

	d.board = board.New(board.Settings{
		Columns:          cfg.GridColumns,
		Layout:           layoutOptions(cfg),
		ViewportWidth:    width,
		ViewportHeight:   height,
		AutoMinimize:     cfg.AutoMinimize,
		MovieMode:        cfg.MovieMode,
		RenderInterval:   cfg.RenderInterval(),
		FocusInterval:    opts.FocusInterval,
		IgnoreForeground: d.ignoreForeground,
		Logger:           logger.With("component", "board"),
		Events:           d.events,
	}, board.Deps{
		Registry:   d.reg,
		Commander:  backend,
		Capture:    d.engine,
		Frames:     d.cache,
		Samples:    d.monitor,
		Foreground: backend,
	})

	d.server, err = ipc.NewServer(ipc.ServerConfig{
		SocketPath: opts.SocketPath,
		Board:      d.board,
		Windows:    backend,
		Frames:     d.cache,
		Events:     d.events,
		Exclude:    d.excluded,
		Reload:     d.Reload,
	})
	if err != nil {
		return nil, err
	}

	d.registerHotkeys(cfg.Hotkeys)

	logger.Info("daemon assembled",
		"columns", cfg.GridColumns,
		"viewport", fmt.Sprintf("%dx%d", width, height),
		"capture_fps", cfg.CaptureFPS,
		"movie_fps", cfg.MovieFPS)
	return d, nil
}

// Board returns the presentation loop.
func (d *Daemon) Board() *board.Board {
	return d.board
}

// SocketPath returns the IPC socket the daemon listens on.
func (d *Daemon) SocketPath() string {
	return d.server.SocketPath()
}

// Config returns the configuration currently applied.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. Capture workers are stopped before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.poller.Run(ctx)
		return nil
	})
	g.Go(func() error {
		d.monitor.Run(ctx)
		return nil
	})
	g.Go(func() error {
		d.board.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return d.server.Run(ctx)
	})
	if loop, ok := d.backend.(eventLooper); ok {
		g.Go(func() error {
			stop := context.AfterFunc(ctx, loop.StopEventLoop)
			defer stop()
			loop.EventLoop()
			if ctx.Err() == nil {
				return errEventLoopExited
			}
			return nil
		})
	}

	d.logger.Info("daemon running", "socket", d.server.SocketPath())
	err := g.Wait()
	d.logger.Info("daemon stopped")
	return err
}

func (d *Daemon) close() {
	d.engine.Close()
	if d.ownEvents {
		if err := d.events.Close(); err != nil {
			d.logger.Warn("failed to close event log", "error", err)
		}
	}
}

// Reload re-reads the configuration file and applies it.
func (d *Daemon) Reload() error {
	path := d.configPath
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}
	res, err := config.LoadFromPath(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()
	if err := d.Apply(ctx, res.Config); err != nil {
		return err
	}
	d.logger.Info("configuration reloaded", "file", res.File)
	return nil
}

// Apply pushes cfg into the running components. Intervals of the liveness
// poller, the resource monitor and the render tick, the resample filter and
// hotkeys only take effect after a restart.
func (d *Daemon) Apply(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.engine.SetRates(cfg.CaptureFPS, cfg.MovieFPS)
	d.engine.SetFailureThreshold(cfg.FailureThreshold)

	if err := d.board.SetColumnCount(ctx, cfg.GridColumns); err != nil {
		return err
	}
	if err := d.board.SetLayoutOptions(ctx, layoutOptions(cfg)); err != nil {
		return err
	}
	if err := d.board.SetMovieMode(ctx, cfg.MovieMode); err != nil {
		return err
	}
	if err := d.board.SetAutoMinimize(ctx, cfg.AutoMinimize); err != nil {
		return err
	}
	if width, height, err := resolveViewport(cfg.Viewport, d.backend); err == nil {
		if err := d.board.SetViewport(ctx, width, height); err != nil {
			return err
		}
	} else {
		d.logger.Warn("keeping previous viewport", "error", err)
	}

	d.mu.Lock()
	prev := d.cfg
	d.cfg = cfg
	d.mu.Unlock()

	if prev != nil && needsRestart(prev, cfg) {
		d.logger.Warn("some settings change only after a daemon restart",
			"liveness_interval_ms", cfg.LivenessIntervalMS,
			"cpu_interval_ms", cfg.CPUIntervalMS,
			"render_fps", cfg.RenderFPS,
			"resample_filter", cfg.ResampleFilter)
	}
	return nil
}

// Actions returns the callbacks bound to global shortcuts.
func (d *Daemon) Actions() hotkeys.Actions {
	return hotkeys.Actions{
		Pick: launchPick,
		ToggleMovie: func() {
			d.toggle("movie_mode", func(s *board.Snapshot) bool { return s.MovieMode }, d.board.SetMovieMode)
		},
		TogglePause: func() {
			d.toggle("paused", func(s *board.Snapshot) bool { return s.Paused }, d.board.SetPaused)
		},
	}
}

func (d *Daemon) toggle(name string, current func(*board.Snapshot) bool, set func(context.Context, bool) error) {
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()
	next := !current(d.board.Snapshot())
	if err := set(ctx, next); err != nil {
		d.logger.Warn("hotkey toggle failed", "setting", name, "error", err)
		return
	}
	d.logger.Info("hotkey toggled", "setting", name, "value", next)
}

func (d *Daemon) registerHotkeys(cfg config.HotkeyConfig) {
	handler, err := hotkeys.NewHandler(d.backend)
	if err != nil {
		d.logger.Debug("hotkeys disabled", "error", err)
		return
	}
	if err := handler.RegisterAll(hotkeys.Bindings(cfg, d.Actions())); err != nil {
		d.logger.Warn("failed to register hotkeys", "error", err)
	}
}

// wire keeps the capture pipeline in step with the registry.
func (d *Daemon) wire(ev registry.Event) {
	h := ev.Window.Handle
	switch ev.Kind {
	case registry.EventAdded:
		d.cache.Register(h)
		d.monitor.Track(h, ev.Window.OwnerPID)
		d.engine.Start(h)
	case registry.EventRemoved:
		d.engine.Stop(h)
		d.cache.Evict(h)
		d.monitor.Untrack(h)
		if f, ok := d.backend.(forgetter); ok {
			f.ForgetWindow(h)
		}
	}
}

func (d *Daemon) onExhausted(handle platform.WindowID, err error) {
	d.events.Log(eventlog.ActionCaptureFail, uint32(handle), map[string]any{"error": err.Error()})
}

func (d *Daemon) excluded(title string) bool {
	return d.Config().IsExcludedTitle(title)
}

// ignoreForeground reports whether focus moving to handle should leave the
// expanded window alone. Windows matching exclude_titles (the TUI itself)
// do not count as the user switching away.
func (d *Daemon) ignoreForeground(handle platform.WindowID) bool {
	windows, err := d.backend.ListWindows()
	if err != nil {
		return false
	}
	for _, w := range windows {
		if w.ID == handle {
			return d.excluded(w.Title)
		}
	}
	return false
}

func launchPick() {
	exe, err := os.Executable()
	if err != nil {
		slog.Warn("pick: failed to find executable", "error", err)
		return
	}
	cmd := exec.Command(exe, "pick")
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		slog.Warn("pick: failed to launch", "error", err)
		return
	}
	go cmd.Wait()
}

func layoutOptions(cfg *config.Config) tiling.Options {
	return tiling.Options{
		Gap:          cfg.Thumbnail.Gap,
		AspectWidth:  cfg.Thumbnail.AspectWidth,
		AspectHeight: cfg.Thumbnail.AspectHeight,
		MinWidth:     cfg.Thumbnail.MinWidth,
		MaxWidth:     cfg.Thumbnail.MaxWidth,
	}
}

// resolveViewport uses the configured size, falling back per dimension to
// the usable area of the active display.
func resolveViewport(vp config.ViewportConfig, control platform.WindowControl) (int, int, error) {
	if vp.Width > 0 && vp.Height > 0 {
		return vp.Width, vp.Height, nil
	}
	display, err := control.ActiveDisplay()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to resolve viewport: %w", err)
	}
	area := display.Usable
	if area.Empty() {
		area = display.Bounds
	}
	if area.Empty() {
		return 0, 0, fmt.Errorf("failed to resolve viewport: display %q has no area", display.Name)
	}
	width, height := area.Width, area.Height
	if vp.Width > 0 {
		width = vp.Width
	}
	if vp.Height > 0 {
		height = vp.Height
	}
	return width, height, nil
}

func needsRestart(prev, next *config.Config) bool {
	return prev.LivenessIntervalMS != next.LivenessIntervalMS ||
		prev.CPUIntervalMS != next.CPUIntervalMS ||
		prev.RenderFPS != next.RenderFPS ||
		prev.ResampleFilter != next.ResampleFilter ||
		prev.Hotkeys != next.Hotkeys
}
