// Package registry tracks the set of windows the user asked to monitor.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/1broseidon/pipgrid/internal/platform"
)

var (
	// ErrInvalidHandle means the window no longer exists at add time.
	ErrInvalidHandle = errors.New("window handle is not valid")
	// ErrAlreadyMonitored rejects a second record for the same handle.
	ErrAlreadyMonitored = errors.New("window is already monitored")
	// ErrNotMonitored means the handle has no record.
	ErrNotMonitored = errors.New("window is not monitored")
)

// MonitoredWindow is one tracked OS window.
type MonitoredWindow struct {
	Handle      platform.WindowID
	OwnerPID    int
	DisplayName string
	VisualState platform.VisualState
	OrderIndex  int
	AddedAt     time.Time
}

// Reason explains why a record was removed.
type Reason int

const (
	ReasonUser Reason = iota
	ReasonWindowGone
	ReasonResourceExhausted
)

func (r Reason) String() string {
	switch r {
	case ReasonUser:
		return "user"
	case ReasonWindowGone:
		return "window-gone"
	case ReasonResourceExhausted:
		return "resource-exhausted"
	default:
		return "unknown"
	}
}

// EventKind identifies a registry event.
type EventKind int

const (
	EventAdded EventKind = iota
	EventRemoved
	EventStateChanged
	EventReordered
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventStateChanged:
		return "state-changed"
	case EventReordered:
		return "reordered"
	default:
		return "unknown"
	}
}

// Event describes a change to the registry. Window is a copy taken at the
// time of the change.
type Event struct {
	Kind     EventKind
	Window   MonitoredWindow
	Reason   Reason
	Previous platform.VisualState
}

// Listener receives registry events. Listeners run synchronously on the
// goroutine that made the change, after the registry lock is released.
type Listener func(Event)

// Direction is a reorder direction.
type Direction int

const (
	Up Direction = iota
	Down
)

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	default:
		return 0, fmt.Errorf("invalid direction %q (expected up or down)", s)
	}
}

// Registry is safe for concurrent use.
type Registry struct {
	control platform.WindowControl
	now     func() time.Time

	mu        sync.Mutex
	windows   map[platform.WindowID]*MonitoredWindow
	order     []platform.WindowID
	listeners []Listener

	suspects chan platform.WindowID
}

// New creates an empty registry backed by control.
func New(control platform.WindowControl) *Registry {
	return &Registry{
		control:  control,
		now:      time.Now,
		windows:  make(map[platform.WindowID]*MonitoredWindow),
		suspects: make(chan platform.WindowID, 64),
	}
}

// Subscribe registers a listener for all future events.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Add starts monitoring handle. Metadata is resolved from the current
// window list so the title and owning process are taken at registration.
func (r *Registry) Add(handle platform.WindowID) (MonitoredWindow, error) {
	if handle == 0 {
		return MonitoredWindow{}, ErrInvalidHandle
	}

	r.mu.Lock()
	_, dup := r.windows[handle]
	r.mu.Unlock()
	if dup {
		return MonitoredWindow{}, ErrAlreadyMonitored
	}

	if !r.control.IsAlive(handle) {
		return MonitoredWindow{}, ErrInvalidHandle
	}
	meta, err := r.lookup(handle)
	if err != nil {
		return MonitoredWindow{}, err
	}
	state, err := r.control.WindowState(handle)
	if err != nil {
		state = platform.StateRestored
	}

	r.mu.Lock()
	if _, dup := r.windows[handle]; dup {
		r.mu.Unlock()
		return MonitoredWindow{}, ErrAlreadyMonitored
	}
	w := &MonitoredWindow{
		Handle:      handle,
		OwnerPID:    meta.PID,
		DisplayName: meta.Title,
		VisualState: state,
		OrderIndex:  len(r.order),
		AddedAt:     r.now(),
	}
	r.windows[handle] = w
	r.order = append(r.order, handle)
	snapshot := *w
	listeners := r.listenersLocked()
	r.mu.Unlock()

	notify(listeners, Event{Kind: EventAdded, Window: snapshot})
	return snapshot, nil
}

func (r *Registry) lookup(handle platform.WindowID) (platform.Window, error) {
	windows, err := r.control.ListWindows()
	if err != nil {
		return platform.Window{}, fmt.Errorf("list windows: %w", err)
	}
	for _, w := range windows {
		if w.ID == handle {
			if w.Title == "" {
				w.Title = fmt.Sprintf("0x%x", uint32(handle))
			}
			return w, nil
		}
	}
	return platform.Window{}, ErrInvalidHandle
}

// Remove stops monitoring handle. It is idempotent: only the call that
// actually deletes the record emits EventRemoved, and it returns true.
func (r *Registry) Remove(handle platform.WindowID, reason Reason) bool {
	r.mu.Lock()
	w, ok := r.windows[handle]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.windows, handle)
	for i, id := range r.order {
		if id == handle {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.reindexLocked()
	snapshot := *w
	listeners := r.listenersLocked()
	r.mu.Unlock()

	notify(listeners, Event{Kind: EventRemoved, Window: snapshot, Reason: reason})
	return true
}

// Move swaps handle with its neighbour in direction dir. It returns false
// without changing anything when handle is already at that edge.
func (r *Registry) Move(handle platform.WindowID, dir Direction) (bool, error) {
	r.mu.Lock()
	w, ok := r.windows[handle]
	if !ok {
		r.mu.Unlock()
		return false, ErrNotMonitored
	}

	i := w.OrderIndex
	j := i - 1
	if dir == Down {
		j = i + 1
	}
	if j < 0 || j >= len(r.order) {
		r.mu.Unlock()
		return false, nil
	}

	r.order[i], r.order[j] = r.order[j], r.order[i]
	r.reindexLocked()
	snapshot := *w
	listeners := r.listenersLocked()
	r.mu.Unlock()

	notify(listeners, Event{Kind: EventReordered, Window: snapshot})
	return true, nil
}

// SetVisualState records an observed state. It reports whether the state
// changed.
func (r *Registry) SetVisualState(handle platform.WindowID, state platform.VisualState) bool {
	r.mu.Lock()
	w, ok := r.windows[handle]
	if !ok || w.VisualState == state {
		r.mu.Unlock()
		return false
	}
	prev := w.VisualState
	w.VisualState = state
	snapshot := *w
	listeners := r.listenersLocked()
	r.mu.Unlock()

	notify(listeners, Event{Kind: EventStateChanged, Window: snapshot, Previous: prev})
	return true
}

// ReportSuspect asks for an immediate liveness check of handle. It never
// blocks; if the queue is full the next periodic pass covers the window.
func (r *Registry) ReportSuspect(handle platform.WindowID) {
	select {
	case r.suspects <- handle:
	default:
	}
}

// Drop removes a window whose capture exhausted resources.
func (r *Registry) Drop(handle platform.WindowID) {
	r.Remove(handle, ReasonResourceExhausted)
}

// Suspects delivers handles reported by ReportSuspect.
func (r *Registry) Suspects() <-chan platform.WindowID {
	return r.suspects
}

// Get returns a copy of the record for handle.
func (r *Registry) Get(handle platform.WindowID) (MonitoredWindow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[handle]
	if !ok {
		return MonitoredWindow{}, false
	}
	return *w, true
}

// Contains reports whether handle is monitored.
func (r *Registry) Contains(handle platform.WindowID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.windows[handle]
	return ok
}

// List returns copies of all records sorted by OrderIndex.
func (r *Registry) List() []MonitoredWindow {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MonitoredWindow, 0, len(r.windows))
	for _, w := range r.windows {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out
}

// Handles returns the monitored handles in grid order.
func (r *Registry) Handles() []platform.WindowID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]platform.WindowID, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of monitored windows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

func (r *Registry) reindexLocked() {
	for i, id := range r.order {
		r.windows[id].OrderIndex = i
	}
}

func (r *Registry) listenersLocked() []Listener {
	out := make([]Listener, len(r.listeners))
	copy(out, r.listeners)
	return out
}

func notify(listeners []Listener, ev Event) {
	for _, l := range listeners {
		l(ev)
	}
}
