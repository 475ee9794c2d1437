// Package capture runs one capture loop per monitored window and feeds
// the thumbnail cache.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1broseidon/pipgrid/internal/platform"
)

// ErrCaptureFailure wraps a transient, per-cycle capture error.
var ErrCaptureFailure = errors.New("capture failed")

// Sink receives committed frames. It returns false when the frame was not
// stored (window evicted or a newer frame already present).
type Sink interface {
	Put(handle platform.WindowID, pixels *image.RGBA, capturedAt time.Time) bool
}

// Reporter is told about windows that look closed or must be dropped.
type Reporter interface {
	ReportSuspect(handle platform.WindowID)
	Drop(handle platform.WindowID)
}

// Config holds configuration for the engine.
type Config struct {
	CaptureFPS       int
	MovieFPS         int
	MovieMode        bool
	FailureThreshold int
	Logger           *slog.Logger

	// OnExhausted is called when a capture buffer could not be allocated,
	// just before the window is dropped.
	OnExhausted func(handle platform.WindowID, err error)
}

// Stats describes one window's capture loop.
type Stats struct {
	Captures            uint64
	Failures            uint64
	Skipped             uint64
	Unviewable          uint64
	ConsecutiveFailures int
	LastDuration        time.Duration
	LastCapturedAt      time.Time
	// Cadence is a moving average of the interval between committed frames.
	Cadence   time.Duration
	Interval  time.Duration
	Suspended bool
}

// FPS converts Cadence to frames per second.
func (s Stats) FPS() float64 {
	if s.Cadence <= 0 {
		return 0
	}
	return float64(time.Second) / float64(s.Cadence)
}

// Engine owns the per-window capture loops. Windows share nothing but the
// global rate and pause flags, so one slow or failing window never delays
// another.
type Engine struct {
	capturer    platform.Capturer
	sink        Sink
	reporter    Reporter
	onExhausted func(platform.WindowID, error)
	logger      *slog.Logger
	now         func() time.Time

	captureFPS atomic.Int64
	movieFPS   atomic.Int64
	movie      atomic.Bool
	paused     atomic.Bool
	threshold  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers map[platform.WindowID]*worker
	wg      sync.WaitGroup
}

// NewEngine creates an engine. Workers are started with Start.
func NewEngine(cfg Config, capturer platform.Capturer, sink Sink, reporter Reporter) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		capturer:    capturer,
		sink:        sink,
		reporter:    reporter,
		onExhausted: cfg.OnExhausted,
		logger:      logger,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		workers:     make(map[platform.WindowID]*worker),
	}
	e.SetRates(cfg.CaptureFPS, cfg.MovieFPS)
	e.SetFailureThreshold(cfg.FailureThreshold)
	e.movie.Store(cfg.MovieMode)
	return e
}

// Interval returns the current target interval between capture attempts.
func (e *Engine) Interval() time.Duration {
	fps := e.captureFPS.Load()
	if e.movie.Load() {
		fps = e.movieFPS.Load()
	}
	return time.Second / time.Duration(fps)
}

// SetRates updates the normal and movie-mode frame rates. Non-positive
// values keep the defaults of 20 and 5.
func (e *Engine) SetRates(captureFPS, movieFPS int) {
	if captureFPS <= 0 {
		captureFPS = 20
	}
	if movieFPS <= 0 {
		movieFPS = 5
	}
	e.captureFPS.Store(int64(captureFPS))
	e.movieFPS.Store(int64(movieFPS))
	e.retuneAll()
}

// SetMovieMode switches every worker between the normal and movie rates
// without restarting it.
func (e *Engine) SetMovieMode(on bool) {
	if e.movie.Swap(on) == on {
		return
	}
	e.logger.Info("movie mode changed", "enabled", on, "interval", e.Interval())
	e.retuneAll()
}

// MovieMode reports whether the reduced rate is active.
func (e *Engine) MovieMode() bool {
	return e.movie.Load()
}

// SetPaused skips all capture while true.
func (e *Engine) SetPaused(paused bool) {
	if e.paused.Swap(paused) != paused {
		e.logger.Info("capture pause changed", "paused", paused)
	}
}

// Paused reports the global pause flag.
func (e *Engine) Paused() bool {
	return e.paused.Load()
}

// SetFailureThreshold sets how many consecutive failures make a window
// suspect. Non-positive values use 10.
func (e *Engine) SetFailureThreshold(n int) {
	if n <= 0 {
		n = 10
	}
	e.threshold.Store(int64(n))
}

// Start launches the capture loop for handle. Starting a running handle
// is a no-op.
func (e *Engine) Start(handle platform.WindowID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.workers[handle]; ok || e.ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(e.ctx)
	w := &worker{
		handle: handle,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		retune: make(chan time.Duration, 1),
	}
	w.interval.Store(int64(e.Interval()))
	e.workers[handle] = w

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.loop(w)
	}()
}

// Stop cancels the loop for handle. A capture already in flight is not
// aborted, but its result is discarded.
func (e *Engine) Stop(handle platform.WindowID) {
	e.mu.Lock()
	w, ok := e.workers[handle]
	delete(e.workers, handle)
	e.mu.Unlock()
	if !ok {
		return
	}
	w.cancel()
	<-w.done
}

// Suspend skips capture for handle until Resume.
func (e *Engine) Suspend(handle platform.WindowID) {
	if w := e.worker(handle); w != nil {
		w.suspended.Store(true)
	}
}

// Resume re-enables capture for handle.
func (e *Engine) Resume(handle platform.WindowID) {
	if w := e.worker(handle); w != nil {
		w.suspended.Store(false)
	}
}

// Running reports whether handle has a capture loop.
func (e *Engine) Running(handle platform.WindowID) bool {
	return e.worker(handle) != nil
}

// Stats returns a snapshot of handle's counters.
func (e *Engine) Stats(handle platform.WindowID) (Stats, bool) {
	w := e.worker(handle)
	if w == nil {
		return Stats{}, false
	}
	s := Stats{
		Captures:            w.captures.Load(),
		Failures:            w.failures.Load(),
		Skipped:             w.skipped.Load(),
		Unviewable:          w.unviewable.Load(),
		ConsecutiveFailures: int(w.streak.Load()),
		LastDuration:        time.Duration(w.lastDuration.Load()),
		Cadence:             time.Duration(w.cadence.Load()),
		Interval:            time.Duration(w.interval.Load()),
		Suspended:           w.suspended.Load(),
	}
	if ns := w.lastCommit.Load(); ns != 0 {
		s.LastCapturedAt = time.Unix(0, ns)
	}
	return s, true
}

// Close stops every worker and waits for the loops and any capture still
// in flight to exit.
func (e *Engine) Close() {
	e.cancel()
	e.mu.Lock()
	e.workers = make(map[platform.WindowID]*worker)
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Engine) worker(handle platform.WindowID) *worker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workers[handle]
}

func (e *Engine) retuneAll() {
	d := e.Interval()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, w := range e.workers {
		w.setInterval(d)
	}
}

func (e *Engine) loop(w *worker) {
	defer close(w.done)

	ticker := time.NewTicker(time.Duration(w.interval.Load()))
	defer ticker.Stop()

	e.tick(w)
	for {
		select {
		case <-w.ctx.Done():
			return
		case d := <-w.retune:
			ticker.Reset(d)
		case <-ticker.C:
			e.tick(w)
		}
	}
}

// tick starts a capture unless the window is suspended, capture is
// paused, or the previous capture is still running. Overlapping ticks are
// skipped, never queued.
func (e *Engine) tick(w *worker) {
	if e.paused.Load() || w.suspended.Load() {
		return
	}
	if !w.inFlight.CompareAndSwap(false, true) {
		w.skipped.Add(1)
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer w.inFlight.Store(false)
		e.captureOnce(w)
	}()
}

func (e *Engine) captureOnce(w *worker) {
	start := e.now()
	img, err := e.safeCapture(w.handle)
	w.lastDuration.Store(int64(e.now().Sub(start)))

	if w.ctx.Err() != nil {
		return
	}

	if errors.Is(err, platform.ErrNotViewable) {
		// Minimized: keep the last frame and leave the failure streak alone.
		w.unviewable.Add(1)
		return
	}
	if err != nil {
		e.handleFailure(w, err)
		return
	}

	if !e.sink.Put(w.handle, img, start) {
		return
	}
	w.streak.Store(0)
	w.captures.Add(1)
	w.observeCommit(start)
}

func (e *Engine) safeCapture(handle platform.WindowID) (img *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCaptureFailure, r)
		}
	}()
	img, err = e.capturer.CaptureWindow(handle)
	if err == nil && img == nil {
		err = platform.ErrZeroSize
	}
	return img, err
}

func (e *Engine) handleFailure(w *worker, err error) {
	w.failures.Add(1)

	if errors.Is(err, platform.ErrCaptureBuffer) {
		e.logger.Warn("capture buffer exhausted, dropping window", "window", w.handle, "error", err)
		if e.onExhausted != nil {
			e.onExhausted(w.handle, err)
		}
		if e.reporter != nil {
			e.reporter.Drop(w.handle)
		}
		return
	}

	n := w.streak.Add(1)
	e.logger.Debug("capture failed", "window", w.handle, "consecutive", n, "error", err)
	if n == e.threshold.Load() && e.reporter != nil {
		e.logger.Info("window suspect after consecutive capture failures", "window", w.handle, "failures", n)
		e.reporter.ReportSuspect(w.handle)
	}
}

type worker struct {
	handle platform.WindowID
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	retune chan time.Duration

	interval  atomic.Int64
	suspended atomic.Bool
	inFlight  atomic.Bool

	captures     atomic.Uint64
	failures     atomic.Uint64
	skipped      atomic.Uint64
	unviewable   atomic.Uint64
	streak       atomic.Int64
	lastDuration atomic.Int64
	lastCommit   atomic.Int64
	cadence      atomic.Int64
}

// setInterval replaces any pending retune so the loop sees only the
// latest value.
func (w *worker) setInterval(d time.Duration) {
	if time.Duration(w.interval.Swap(int64(d))) == d {
		return
	}
	select {
	case <-w.retune:
	default:
	}
	select {
	case w.retune <- d:
	default:
	}
}

// cadenceWeight is the EWMA weight of the newest interval.
const cadenceWeight = 0.2

func (w *worker) observeCommit(at time.Time) {
	prev := w.lastCommit.Swap(at.UnixNano())
	if prev == 0 {
		return
	}
	dt := at.UnixNano() - prev
	if dt <= 0 {
		return
	}
	cur := w.cadence.Load()
	if cur == 0 {
		w.cadence.Store(dt)
		return
	}
	w.cadence.Store(cur + int64(cadenceWeight*float64(dt-cur)))
}
