package platform

import (
	"errors"
	"image"
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Display describes a physical display and its usable work area.
type Display struct {
	ID     int
	Name   string
	Bounds Rect
	Usable Rect
}

// Window contains metadata and geometry for a top-level window.
type Window struct {
	ID     WindowID
	PID    int
	AppID  string
	Title  string
	Bounds Rect
}

// VisualState is the on-screen state of a monitored window.
type VisualState int

const (
	StateRestored VisualState = iota
	StateMinimized
	StateHidden
	StateClosed
)

// String returns the string representation of the state
func (s VisualState) String() string {
	switch s {
	case StateRestored:
		return "restored"
	case StateMinimized:
		return "minimized"
	case StateHidden:
		return "hidden"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrWindowGone means the window no longer exists.
	ErrWindowGone = errors.New("window no longer exists")
	// ErrZeroSize means the window currently has no drawable area.
	ErrZeroSize = errors.New("window has zero size")
	// ErrNotViewable means the window exists but is unmapped (minimized),
	// so the window server holds no content for it.
	ErrNotViewable = errors.New("window is not viewable")
	// ErrAccessDenied means the window server refused access to the window content.
	ErrAccessDenied = errors.New("window content access denied")
	// ErrCaptureBuffer means a capture buffer could not be allocated.
	ErrCaptureBuffer = errors.New("capture buffer unavailable")
	// ErrProcessGone means the sampled process no longer exists.
	ErrProcessGone = errors.New("process no longer exists")
	// ErrUnsupported is returned by backends on platforms without an adapter.
	ErrUnsupported = errors.New("platform not supported")
)

// WindowControl abstracts window enumeration and state commands.
type WindowControl interface {
	ListWindows() ([]Window, error)
	IsAlive(windowID WindowID) bool
	WindowState(windowID WindowID) (VisualState, error)
	Restore(windowID WindowID) error
	Minimize(windowID WindowID) error
	ActiveDisplay() (Display, error)
	ActiveWindow() (WindowID, error)
}

// Capturer produces a bitmap of a window's current content without changing
// its state. Implementations must be safe for concurrent use across windows.
type Capturer interface {
	CaptureWindow(windowID WindowID) (*image.RGBA, error)
}

// Backend abstracts window-system operations across platforms.
type Backend interface {
	WindowControl
	Capturer
}

// ProcessSampler reports process-level CPU usage.
type ProcessSampler interface {
	// CPUPercent returns usage since the previous call for pid, in [0,100].
	CPUPercent(pid int) (float64, error)
	// Forget releases any state kept for pid.
	Forget(pid int)
}
