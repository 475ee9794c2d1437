// Package thumbcache holds the latest captured frame per window together
// with a copy resampled for the current grid cell.
package thumbcache

import (
	"encoding/binary"
	"fmt"
	"image"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/image/draw"

	"github.com/1broseidon/pipgrid/internal/platform"
	"github.com/1broseidon/pipgrid/internal/tiling"
)

// Frame is an immutable snapshot of one window. Readers may hold a Frame
// indefinitely; the cache never mutates a published Frame.
type Frame struct {
	Pixels      *image.RGBA
	CapturedAt  time.Time
	Fingerprint uint64

	// Scaled is Pixels resampled to fit ScaledSize, or nil before the first
	// cell size is known. Placement is where Scaled sits inside the cell.
	Scaled     *image.RGBA
	ScaledSize image.Point
	Placement  image.Rectangle
}

type entry struct {
	frame atomic.Pointer[Frame]

	// mu serializes commits for this handle only.
	mu      sync.Mutex
	evicted bool
}

// Stats reports cache activity.
type Stats struct {
	Entries   int
	Frames    int
	Bytes     uint64
	Resamples uint64
	Reuses    uint64
	Discarded uint64
}

// Cache is safe for concurrent use. Get never blocks.
type Cache struct {
	entries sync.Map // platform.WindowID -> *entry
	cell    atomic.Pointer[image.Point]
	filter  draw.Interpolator

	resamples atomic.Uint64
	reuses    atomic.Uint64
	discarded atomic.Uint64
}

// Filters lists the accepted resample filter names.
var Filters = []string{"nearest", "approx-bilinear", "bilinear", "catmull-rom"}

// ParseFilter maps a filter name to an x/image interpolator.
func ParseFilter(name string) (draw.Interpolator, error) {
	switch name {
	case "nearest":
		return draw.NearestNeighbor, nil
	case "", "approx-bilinear":
		return draw.ApproxBiLinear, nil
	case "bilinear":
		return draw.BiLinear, nil
	case "catmull-rom":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unknown resample filter %q", name)
	}
}

// New creates a cache that resamples with filter.
func New(filter draw.Interpolator) *Cache {
	if filter == nil {
		filter = draw.ApproxBiLinear
	}
	c := &Cache{filter: filter}
	c.cell.Store(&image.Point{})
	return c
}

// Register creates the entry for handle. Until the first Put, Get reports
// the entry as absent and callers render a placeholder.
func (c *Cache) Register(handle platform.WindowID) {
	c.entries.LoadOrStore(handle, &entry{})
}

// Contains reports whether handle has an entry, with or without a frame.
func (c *Cache) Contains(handle platform.WindowID) bool {
	_, ok := c.entries.Load(handle)
	return ok
}

// Put publishes a new frame for handle. It returns false when the handle
// is not registered (including after Evict) or when a newer frame has
// already been committed.
func (c *Cache) Put(handle platform.WindowID, pixels *image.RGBA, capturedAt time.Time) bool {
	e := c.load(handle)
	if e == nil || pixels == nil {
		return false
	}

	prev := e.frame.Load()
	if prev != nil && capturedAt.Before(prev.CapturedAt) {
		c.discarded.Add(1)
		return false
	}

	next := &Frame{
		Pixels:      pixels,
		CapturedAt:  capturedAt,
		Fingerprint: fingerprint(pixels),
	}
	c.scaleInto(next, prev, c.CellSize())

	return c.commit(e, next)
}

// Get returns the most recent committed frame.
func (c *Cache) Get(handle platform.WindowID) (*Frame, bool) {
	e := c.load(handle)
	if e == nil {
		return nil, false
	}
	f := e.frame.Load()
	return f, f != nil
}

// Evict removes handle and releases its frames. It is idempotent, and a
// Put racing with Evict can no longer publish once Evict returns.
func (c *Cache) Evict(handle platform.WindowID) {
	v, ok := c.entries.LoadAndDelete(handle)
	if !ok {
		return
	}
	e := v.(*entry)
	e.mu.Lock()
	e.evicted = true
	e.frame.Store(nil)
	e.mu.Unlock()
}

// SetCellSize sets the target scaled size. Frames are resampled lazily on
// the next Put, or eagerly by Rescale.
func (c *Cache) SetCellSize(width, height int) bool {
	next := image.Pt(width, height)
	if *c.cell.Load() == next {
		return false
	}
	c.cell.Store(&next)
	return true
}

// CellSize returns the current target size.
func (c *Cache) CellSize() image.Point {
	return *c.cell.Load()
}

// Rescale refreshes every frame whose scaled copy does not match the
// current cell size.
func (c *Cache) Rescale() int {
	cell := c.CellSize()
	n := 0
	c.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		prev := e.frame.Load()
		if prev == nil || prev.ScaledSize == cell {
			return true
		}
		next := &Frame{
			Pixels:      prev.Pixels,
			CapturedAt:  prev.CapturedAt,
			Fingerprint: prev.Fingerprint,
		}
		c.scaleInto(next, nil, cell)
		if c.commit(e, next) {
			n++
		}
		return true
	})
	return n
}

// Handles returns all registered handles in ascending order.
func (c *Cache) Handles() []platform.WindowID {
	var out []platform.WindowID
	c.entries.Range(func(k, _ any) bool {
		out = append(out, k.(platform.WindowID))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stats returns entry counts, retained bytes and resample counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		Resamples: c.resamples.Load(),
		Reuses:    c.reuses.Load(),
		Discarded: c.discarded.Load(),
	}
	c.entries.Range(func(_, v any) bool {
		s.Entries++
		f := v.(*entry).frame.Load()
		if f == nil {
			return true
		}
		s.Frames++
		s.Bytes += uint64(len(f.Pixels.Pix))
		if f.Scaled != nil {
			s.Bytes += uint64(len(f.Scaled.Pix))
		}
		return true
	})
	return s
}

func (c *Cache) load(handle platform.WindowID) *entry {
	v, ok := c.entries.Load(handle)
	if !ok {
		return nil
	}
	return v.(*entry)
}

// commit stores next unless the entry was evicted or a newer frame won.
func (c *Cache) commit(e *entry, next *Frame) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return false
	}
	if cur := e.frame.Load(); cur != nil && next.CapturedAt.Before(cur.CapturedAt) {
		c.discarded.Add(1)
		return false
	}
	e.frame.Store(next)
	return true
}

// fingerprint identifies frame content. Geometry is part of the identity:
// equal bytes laid out at a different size are a different frame.
func fingerprint(pixels *image.RGBA) uint64 {
	size := pixels.Bounds().Size()
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(size.X))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(size.Y))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(pixels.Stride))

	h := xxh3.New()
	h.Write(hdr[:])
	h.Write(pixels.Pix)
	return h.Sum64()
}

// scaleInto fills the scaled fields of next. The previous scaled copy is
// reused when neither the content nor the cell size changed.
func (c *Cache) scaleInto(next, prev *Frame, cell image.Point) {
	if cell.X <= 0 || cell.Y <= 0 {
		return
	}

	if prev != nil && prev.Scaled != nil && prev.ScaledSize == cell && prev.Fingerprint == next.Fingerprint &&
		prev.Pixels.Bounds().Size() == next.Pixels.Bounds().Size() {
		next.Scaled = prev.Scaled
		next.ScaledSize = prev.ScaledSize
		next.Placement = prev.Placement
		c.reuses.Add(1)
		return
	}

	src := next.Pixels.Bounds()
	box := tiling.Letterbox(src.Dx(), src.Dy(), platform.Rect{Width: cell.X, Height: cell.Y})
	if box.Empty() {
		return
	}

	dst := image.NewRGBA(image.Rect(0, 0, box.Width, box.Height))
	c.filter.Scale(dst, dst.Bounds(), next.Pixels, src, draw.Src, nil)

	next.Scaled = dst
	next.ScaledSize = cell
	next.Placement = image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height)
	c.resamples.Add(1)
}
