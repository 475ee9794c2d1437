//go:build !linux

package platform

import "image"

// UnsupportedBackend satisfies Backend on platforms without a window adapter.
type UnsupportedBackend struct{}

var _ Backend = (*UnsupportedBackend)(nil)

// NewBackend reports that no adapter exists for this platform.
func NewBackend() (*UnsupportedBackend, error) {
	return nil, ErrUnsupported
}

func (*UnsupportedBackend) ListWindows() ([]Window, error)            { return nil, ErrUnsupported }
func (*UnsupportedBackend) IsAlive(WindowID) bool                     { return false }
func (*UnsupportedBackend) WindowState(WindowID) (VisualState, error) { return StateClosed, ErrUnsupported }
func (*UnsupportedBackend) Restore(WindowID) error                    { return ErrUnsupported }
func (*UnsupportedBackend) Minimize(WindowID) error                   { return ErrUnsupported }
func (*UnsupportedBackend) ActiveDisplay() (Display, error)           { return Display{}, ErrUnsupported }
func (*UnsupportedBackend) ActiveWindow() (WindowID, error)           { return 0, ErrUnsupported }
func (*UnsupportedBackend) CaptureWindow(WindowID) (*image.RGBA, error) {
	return nil, ErrUnsupported
}
func (*UnsupportedBackend) ForgetWindow(WindowID) {}
func (*UnsupportedBackend) EventLoop()            {}
func (*UnsupportedBackend) StopEventLoop()        {}
func (*UnsupportedBackend) Disconnect()           {}

