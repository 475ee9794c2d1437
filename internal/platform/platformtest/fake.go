// Package platformtest provides an in-memory platform.Backend for tests.
package platformtest

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/1broseidon/pipgrid/internal/platform"
)

// Backend is a scriptable fake. All methods are safe for concurrent use.
type Backend struct {
	mu      sync.Mutex
	windows map[platform.WindowID]platform.Window
	dead    map[platform.WindowID]bool
	states  map[platform.WindowID]platform.VisualState
	active  platform.WindowID
	display platform.Display

	// CaptureFunc overrides CaptureWindow when set.
	CaptureFunc func(platform.WindowID) (*image.RGBA, error)
	// RestoreErr is returned by Restore when set.
	RestoreErr error

	commands []string
}

var _ platform.Backend = (*Backend)(nil)

// New creates a fake with a 1920x1080 display and no windows.
func New() *Backend {
	bounds := platform.Rect{Width: 1920, Height: 1080}
	return &Backend{
		windows: make(map[platform.WindowID]platform.Window),
		dead:    make(map[platform.WindowID]bool),
		states:  make(map[platform.WindowID]platform.VisualState),
		display: platform.Display{Name: "fake", Bounds: bounds, Usable: bounds},
	}
}

// AddWindow makes a live, restored window enumerable.
func (b *Backend) AddWindow(id platform.WindowID, pid int, title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows[id] = platform.Window{
		ID:     id,
		PID:    pid,
		Title:  title,
		Bounds: platform.Rect{Width: 800, Height: 600},
	}
	delete(b.dead, id)
	b.states[id] = platform.StateRestored
}

// Kill makes a window fail liveness checks.
func (b *Backend) Kill(id platform.WindowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dead[id] = true
	delete(b.windows, id)
}

// SetState sets the reported visual state.
func (b *Backend) SetState(id platform.WindowID, s platform.VisualState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[id] = s
}

// SetActive sets the reported foreground window.
func (b *Backend) SetActive(id platform.WindowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = id
}

// Commands returns the Restore/Minimize calls in order, formatted as
// "restore(1)" and "minimize(1)".
func (b *Backend) Commands() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.commands))
	copy(out, b.commands)
	return out
}

func (b *Backend) ListWindows() ([]platform.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]platform.Window, 0, len(b.windows))
	for _, w := range b.windows {
		out = append(out, w)
	}
	return out, nil
}

func (b *Backend) IsAlive(id platform.WindowID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.windows[id]
	return ok && !b.dead[id]
}

func (b *Backend) WindowState(id platform.WindowID) (platform.VisualState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.windows[id]; !ok {
		return platform.StateClosed, platform.ErrWindowGone
	}
	return b.states[id], nil
}

func (b *Backend) Restore(id platform.WindowID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, fmt.Sprintf("restore(%d)", id))
	if b.RestoreErr != nil {
		return b.RestoreErr
	}
	b.states[id] = platform.StateRestored
	b.active = id
	return nil
}

func (b *Backend) Minimize(id platform.WindowID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, fmt.Sprintf("minimize(%d)", id))
	b.states[id] = platform.StateMinimized
	return nil
}

func (b *Backend) ActiveDisplay() (platform.Display, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.display, nil
}

func (b *Backend) ActiveWindow() (platform.WindowID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active, nil
}

func (b *Backend) CaptureWindow(id platform.WindowID) (*image.RGBA, error) {
	b.mu.Lock()
	fn := b.CaptureFunc
	_, ok := b.windows[id]
	b.mu.Unlock()
	if fn != nil {
		return fn(id)
	}
	if !ok {
		return nil, platform.ErrWindowGone
	}
	return Solid(64, 48, color.RGBA{R: uint8(id), A: 0xff}), nil
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}
