package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/1broseidon/pipgrid/internal/platform"
)

// PollerConfig holds configuration for the liveness poller.
type PollerConfig struct {
	Interval      time.Duration
	GoneThreshold int
	Logger        *slog.Logger
}

// Poller periodically checks every monitored window for liveness and
// visual state. Window closure is detected here rather than by event
// callbacks: a window failing GoneThreshold consecutive checks is removed
// with ReasonWindowGone.
type Poller struct {
	interval      time.Duration
	goneThreshold int
	reg           *Registry
	control       platform.WindowControl
	logger        *slog.Logger

	// misses is only touched from the Run goroutine.
	misses map[platform.WindowID]int
}

// NewPoller creates a poller over reg.
func NewPoller(cfg PollerConfig, reg *Registry, control platform.WindowControl) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	threshold := cfg.GoneThreshold
	if threshold <= 0 {
		threshold = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		interval:      interval,
		goneThreshold: threshold,
		reg:           reg,
		control:       control,
		logger:        logger,
		misses:        make(map[platform.WindowID]int),
	}
}

// Run starts the polling loop. Blocks until context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("liveness poller started", "interval", p.interval, "gone_threshold", p.goneThreshold)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("liveness poller stopped")
			return
		case handle := <-p.reg.Suspects():
			p.logger.Debug("suspect window reported", "window", handle)
			p.guard(func() { p.check(handle) })
		case <-ticker.C:
			p.guard(p.PollNow)
		}
	}
}

// PollNow performs a single pass over all monitored windows.
func (p *Poller) PollNow() {
	handles := p.reg.Handles()
	live := make(map[platform.WindowID]struct{}, len(handles))
	for _, h := range handles {
		live[h] = struct{}{}
		p.check(h)
	}
	for h := range p.misses {
		if _, ok := live[h]; !ok {
			delete(p.misses, h)
		}
	}
}

func (p *Poller) check(handle platform.WindowID) {
	if !p.reg.Contains(handle) {
		delete(p.misses, handle)
		return
	}

	if !p.control.IsAlive(handle) {
		p.misses[handle]++
		n := p.misses[handle]
		p.logger.Debug("liveness check failed", "window", handle, "consecutive", n)
		if n >= p.goneThreshold {
			delete(p.misses, handle)
			if p.reg.Remove(handle, ReasonWindowGone) {
				p.logger.Info("window gone, removed", "window", handle, "checks", n)
			}
		}
		return
	}
	delete(p.misses, handle)

	state, err := p.control.WindowState(handle)
	if err != nil {
		return
	}
	if p.reg.SetVisualState(handle, state) {
		p.logger.Debug("window state changed", "window", handle, "state", state)
	}
}

func (p *Poller) guard(fn func()) {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			p.logger.Error("liveness poller panic recovered", "error", err)
		}
	}()
	fn()
}
