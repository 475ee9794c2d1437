// Package focus implements click-to-expand and auto-minimize.
package focus

import (
	"fmt"
	"log/slog"

	"github.com/1broseidon/pipgrid/internal/platform"
)

// Phase is the coordinator's state.
type Phase int

const (
	// PhaseIdle means no window is expanded
	PhaseIdle Phase = iota
	// PhaseExpanded means one window is restored in front of the user
	PhaseExpanded
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseExpanded:
		return "expanded"
	default:
		return "unknown"
	}
}

// State is the coordinator's current state. Window is zero when Idle.
type State struct {
	Phase  Phase
	Window platform.WindowID
}

func (s State) String() string {
	if s.Phase == PhaseExpanded {
		return fmt.Sprintf("expanded(%d)", s.Window)
	}
	return s.Phase.String()
}

// Commander issues window commands to the OS.
type Commander interface {
	Restore(handle platform.WindowID) error
	Minimize(handle platform.WindowID) error
}

// CaptureControl suspends and resumes capture for one window.
type CaptureControl interface {
	Suspend(handle platform.WindowID)
	Resume(handle platform.WindowID)
}

// Coordinator is not safe for concurrent use; the presentation loop owns it.
type Coordinator struct {
	cmd          Commander
	capture      CaptureControl
	autoMinimize bool
	logger       *slog.Logger

	// Ignore reports windows whose activation must not collapse the
	// expanded window, such as the grid's own window.
	Ignore func(platform.WindowID) bool

	state State
}

// New creates an Idle coordinator.
func New(cmd Commander, capture CaptureControl, autoMinimize bool, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cmd:          cmd,
		capture:      capture,
		autoMinimize: autoMinimize,
		logger:       logger,
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	return c.state
}

// AutoMinimize reports the auto-minimize policy.
func (c *Coordinator) AutoMinimize() bool {
	return c.autoMinimize
}

// SetAutoMinimize changes the policy. Transitions still happen when it is
// off; only the minimize commands are suppressed.
func (c *Coordinator) SetAutoMinimize(on bool) {
	c.autoMinimize = on
}

// Click handles a click on handle's thumbnail.
//
//	Idle          --click(w)-->  Expanded(w)   restore(w), suspend(w)
//	Expanded(w)   --click(w)-->  Idle          [minimize(w)], resume(w)
//	Expanded(w)   --click(w2)--> Expanded(w2)  [minimize(w)], resume(w), restore(w2), suspend(w2)
//
// A failed restore leaves the coordinator Idle with capture running.
func (c *Coordinator) Click(handle platform.WindowID) error {
	switch c.state.Phase {
	case PhaseIdle:
		return c.expand(handle)

	case PhaseExpanded:
		prev := c.state.Window
		c.collapse(prev)
		if prev == handle {
			return nil
		}
		return c.expand(handle)
	}
	return nil
}

// WindowRemoved forces Idle when the expanded window disappears. No
// minimize is issued since the window is already gone.
func (c *Coordinator) WindowRemoved(handle platform.WindowID) {
	if c.state.Phase == PhaseExpanded && c.state.Window == handle {
		c.logger.Debug("expanded window removed", "window", handle)
		c.state = State{Phase: PhaseIdle}
	}
}

// ForegroundChanged collapses the expanded window when another window,
// not ignored, takes the foreground. It reports whether the state changed.
func (c *Coordinator) ForegroundChanged(active platform.WindowID) bool {
	if c.state.Phase != PhaseExpanded || active == 0 || active == c.state.Window {
		return false
	}
	if c.Ignore != nil && c.Ignore(active) {
		return false
	}
	c.logger.Debug("expanded window lost foreground", "window", c.state.Window, "active", active)
	c.collapse(c.state.Window)
	return true
}

func (c *Coordinator) expand(handle platform.WindowID) error {
	if err := c.cmd.Restore(handle); err != nil {
		c.state = State{Phase: PhaseIdle}
		return fmt.Errorf("restore %d: %w", handle, err)
	}
	c.capture.Suspend(handle)
	c.state = State{Phase: PhaseExpanded, Window: handle}
	return nil
}

func (c *Coordinator) collapse(handle platform.WindowID) {
	if c.autoMinimize {
		if err := c.cmd.Minimize(handle); err != nil {
			c.logger.Warn("minimize failed", "window", handle, "error", err)
		}
	}
	c.capture.Resume(handle)
	c.state = State{Phase: PhaseIdle}
}
