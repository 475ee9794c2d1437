package hotkeys

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/pipgrid/internal/config"
)

// ErrNoX11 is returned when the backend does not expose an X connection.
var ErrNoX11 = errors.New("hotkeys require an X11 backend")

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Actions are the daemon callbacks bound to configured shortcuts. A nil
// action leaves its shortcut unbound.
type Actions struct {
	Pick        func()
	ToggleMovie func()
	TogglePause func()
}

// Binding pairs a key sequence with its callback.
type Binding struct {
	Name     string
	Sequence string
	Callback func()
}

// Bindings resolves the shortcuts to register. Empty sequences and nil
// actions are skipped.
func Bindings(cfg config.HotkeyConfig, actions Actions) []Binding {
	candidates := []Binding{
		{Name: "pick", Sequence: cfg.Pick, Callback: actions.Pick},
		{Name: "movie_mode", Sequence: cfg.MovieMode, Callback: actions.ToggleMovie},
		{Name: "pause", Sequence: cfg.Pause, Callback: actions.TogglePause},
	}
	out := make([]Binding, 0, len(candidates))
	for _, b := range candidates {
		if b.Sequence == "" || b.Callback == nil {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu   *xgbutil.XUtil
	root xproto.Window
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler.
func NewHandler(backend any) (*Handler, error) {
	accessor, ok := backend.(x11Accessor)
	if !ok || accessor.XUtil() == nil {
		return nil, ErrNoX11
	}
	xu := accessor.XUtil()

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Handler{
		xu:   xu,
		root: accessor.RootWindow(),
	}, nil
}

// RegisterAll grabs every binding. A failing binding does not stop the
// others; the joined error names each failure.
func (h *Handler) RegisterAll(bindings []Binding) error {
	var errs []error
	for _, b := range bindings {
		if err := h.RegisterFunc(b.Sequence, b.Callback); err != nil {
			errs = append(errs, fmt.Errorf("hotkeys.%s %q: %w", b.Name, b.Sequence, err))
			continue
		}
		log.Printf("Registered %s hotkey: %s", b.Name, b.Sequence)
	}
	return errors.Join(errs...)
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
