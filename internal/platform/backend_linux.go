//go:build linux

package platform

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/1broseidon/pipgrid/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// LinuxBackend wraps an existing X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn}
}

// NewBackend opens a fresh X11 connection.
func NewBackend() (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &LinuxBackend{conn: conn}, nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// StopEventLoop makes a running EventLoop return.
func (b *LinuxBackend) StopEventLoop() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window, used for global key grabs.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// ListWindows returns every normal client window, sorted by ID.
func (b *LinuxBackend) ListWindows() ([]Window, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	clients, err := conn.ClientWindows()
	if err != nil {
		return nil, err
	}

	windows := make([]Window, 0, len(clients))
	for _, cw := range clients {
		windows = append(windows, Window{
			ID:    WindowID(cw.ID),
			PID:   cw.PID,
			AppID: cw.Class,
			Title: cw.Title,
			Bounds: Rect{
				X:      cw.X,
				Y:      cw.Y,
				Width:  cw.Width,
				Height: cw.Height,
			},
		})
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].ID < windows[j].ID
	})
	return windows, nil
}

// IsAlive reports whether the window still exists.
func (b *LinuxBackend) IsAlive(windowID WindowID) bool {
	conn, err := b.connection()
	if err != nil {
		return false
	}
	return conn.IsAlive(xproto.Window(windowID))
}

// WindowState derives the visual state from WM hints and the map state.
func (b *LinuxBackend) WindowState(windowID WindowID) (VisualState, error) {
	conn, err := b.connection()
	if err != nil {
		return StateClosed, err
	}

	win := xproto.Window(windowID)
	mapState, err := conn.MapState(win)
	if err != nil {
		return StateClosed, ErrWindowGone
	}
	if conn.IsIconic(win) {
		return StateMinimized, nil
	}
	if mapState != xproto.MapStateViewable {
		return StateHidden, nil
	}
	return StateRestored, nil
}

// Restore de-iconifies, raises and focuses a window.
func (b *LinuxBackend) Restore(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	if !conn.IsAlive(xproto.Window(windowID)) {
		return ErrWindowGone
	}
	return conn.Activate(xproto.Window(windowID))
}

// Minimize iconifies a window.
func (b *LinuxBackend) Minimize(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	if !conn.IsAlive(xproto.Window(windowID)) {
		return ErrWindowGone
	}
	return conn.Minimize(xproto.Window(windowID))
}

// ActiveDisplay returns the currently active display.
func (b *LinuxBackend) ActiveDisplay() (Display, error) {
	conn, err := b.connection()
	if err != nil {
		return Display{}, err
	}

	active, err := conn.GetActiveMonitor()
	if err != nil {
		return Display{}, err
	}

	bounds := Rect{X: active.X, Y: active.Y, Width: active.Width, Height: active.Height}
	return Display{ID: active.ID, Name: active.Name, Bounds: bounds, Usable: bounds}, nil
}

// ActiveWindow returns the currently active/focused window ID.
func (b *LinuxBackend) ActiveWindow() (WindowID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}

	wid, err := conn.ActiveWindow()
	if err != nil {
		return 0, err
	}
	return WindowID(wid), nil
}

// CaptureWindow copies the window's content, classifying X11 failures into
// the platform sentinel errors.
func (b *LinuxBackend) CaptureWindow(windowID WindowID) (*image.RGBA, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	win := xproto.Window(windowID)
	img, err := conn.CaptureWindow(win)
	switch {
	case err == nil:
		return img, nil
	case errors.Is(err, x11.ErrTooLarge):
		return nil, fmt.Errorf("%w: %v", ErrCaptureBuffer, err)
	case errors.Is(err, x11.ErrNotViewable):
		return nil, ErrNotViewable
	case !conn.IsAlive(win):
		return nil, ErrWindowGone
	default:
		return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
}

// ForgetWindow releases capture resources held for a window.
func (b *LinuxBackend) ForgetWindow(windowID WindowID) {
	if conn, err := b.connection(); err == nil {
		conn.Forget(xproto.Window(windowID))
	}
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}
