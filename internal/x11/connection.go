package x11

import (
	"sync"

	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	// composite is true when the Composite extension is usable for capture.
	composite bool

	mu         sync.Mutex
	redirected map[xproto.Window]struct{}
}

// NewConnection establishes a connection to the X11 server and initializes required extensions
func NewConnection() (*Connection, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}

	// Initialize keybind module (required for global hotkeys)
	keybind.Initialize(xu)

	c := &Connection{
		XUtil:      xu,
		Root:       xu.RootWin(),
		redirected: make(map[xproto.Window]struct{}),
	}

	// Composite gives us off-screen window content. Without it we fall back to
	// reading the window drawable directly, which only works while visible.
	if err := composite.Init(xu.Conn()); err == nil {
		if _, err := composite.QueryVersion(xu.Conn(), 0, 4).Reply(); err == nil {
			c.composite = true
		}
	}

	return c, nil
}

// HasComposite reports whether the Composite extension is in use.
func (c *Connection) HasComposite() bool {
	return c.composite
}

// EventLoop starts the main X11 event loop (blocking)
func (c *Connection) EventLoop() {
	xevent.Main(c.XUtil)
}

// Quit stops a running event loop.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
