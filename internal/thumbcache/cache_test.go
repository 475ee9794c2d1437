package thumbcache

import (
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"golang.org/x/image/draw"

	"github.com/1broseidon/pipgrid/internal/platform"
	"github.com/1broseidon/pipgrid/internal/platform/platformtest"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func red(w, h int) *image.RGBA {
	return platformtest.Solid(w, h, color.RGBA{R: 0xff, A: 0xff})
}

func blue(w, h int) *image.RGBA {
	return platformtest.Solid(w, h, color.RGBA{B: 0xff, A: 0xff})
}

func TestPut_UnregisteredIsNoop(t *testing.T) {
	c := New(nil)
	if c.Put(1, red(10, 10), t0) {
		t.Fatalf("put on unregistered handle should fail")
	}
	if _, ok := c.Get(1); ok {
		t.Fatalf("expected absent")
	}
}

func TestGet_PlaceholderBeforeFirstFrame(t *testing.T) {
	c := New(nil)
	c.Register(1)
	if _, ok := c.Get(1); ok {
		t.Fatalf("expected no frame before first put")
	}
	if !c.Contains(1) {
		t.Fatalf("expected registered entry")
	}
}

func TestPut_LatestWins(t *testing.T) {
	c := New(nil)
	c.Register(1)

	f2 := blue(8, 8)
	if !c.Put(1, f2, t0.Add(time.Second)) {
		t.Fatalf("put f2")
	}
	if c.Put(1, red(8, 8), t0) {
		t.Fatalf("older frame must be discarded")
	}

	got, ok := c.Get(1)
	if !ok || got.Pixels != f2 {
		t.Fatalf("expected f2 to remain committed")
	}
	if c.Stats().Discarded != 1 {
		t.Fatalf("expected 1 discarded frame, got %d", c.Stats().Discarded)
	}
}

func TestEvict_WriteAfterEvictIsNoop(t *testing.T) {
	c := New(nil)
	c.Register(1)
	c.Put(1, red(4, 4), t0)

	c.Evict(1)
	c.Evict(1)

	if c.Put(1, red(4, 4), t0.Add(time.Second)) {
		t.Fatalf("put after evict should be a no-op")
	}
	if _, ok := c.Get(1); ok {
		t.Fatalf("expected absent after evict")
	}
	if c.Contains(1) {
		t.Fatalf("entry should be gone")
	}
}

func TestEvict_ConcurrentWithPut(t *testing.T) {
	c := New(nil)
	c.SetCellSize(16, 12)

	for round := 0; round < 50; round++ {
		h := platform.WindowID(round + 1)
		c.Register(h)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				c.Put(h, red(32, 24), t0.Add(time.Duration(i)*time.Millisecond))
			}
		}()
		go func() {
			defer wg.Done()
			c.Evict(h)
		}()
		wg.Wait()

		if _, ok := c.Get(h); ok {
			t.Fatalf("round %d: frame visible after evict", round)
		}
	}
	if len(c.Handles()) != 0 {
		t.Fatalf("expected no entries, got %v", c.Handles())
	}
}

func TestPut_ResampleOnlyOnChange(t *testing.T) {
	c := New(draw.NearestNeighbor)
	c.Register(1)
	c.SetCellSize(40, 30)

	c.Put(1, red(80, 60), t0)
	c.Put(1, red(80, 60), t0.Add(time.Millisecond))
	if s := c.Stats(); s.Resamples != 1 || s.Reuses != 1 {
		t.Fatalf("identical content: resamples=%d reuses=%d, want 1/1", s.Resamples, s.Reuses)
	}

	c.Put(1, blue(80, 60), t0.Add(2*time.Millisecond))
	if s := c.Stats(); s.Resamples != 2 {
		t.Fatalf("changed content should resample, got %d", s.Resamples)
	}

	c.SetCellSize(20, 15)
	c.Put(1, blue(80, 60), t0.Add(3*time.Millisecond))
	if s := c.Stats(); s.Resamples != 3 {
		t.Fatalf("changed cell should resample, got %d", s.Resamples)
	}

	f, _ := c.Get(1)
	if f.ScaledSize != image.Pt(20, 15) {
		t.Fatalf("scaled size = %v", f.ScaledSize)
	}
	if f.Scaled.Bounds().Dx() != 20 || f.Scaled.Bounds().Dy() != 15 {
		t.Fatalf("scaled bounds = %v", f.Scaled.Bounds())
	}
}

func TestPut_SameBytesNewGeometryResamples(t *testing.T) {
	c := New(draw.NearestNeighbor)
	c.Register(1)
	c.SetCellSize(100, 100)

	// Both frames carry identical Pix bytes; only the shape differs.
	c.Put(1, red(80, 20), t0)
	c.Put(1, red(20, 80), t0.Add(time.Millisecond))

	if s := c.Stats(); s.Resamples != 2 || s.Reuses != 0 {
		t.Fatalf("resamples=%d reuses=%d, want 2/0", s.Resamples, s.Reuses)
	}
	f, _ := c.Get(1)
	if want := image.Rect(37, 0, 62, 100); f.Placement != want {
		t.Fatalf("placement = %v, want %v", f.Placement, want)
	}
	if f.Scaled.Bounds().Dx() != 25 || f.Scaled.Bounds().Dy() != 100 {
		t.Fatalf("scaled bounds = %v", f.Scaled.Bounds())
	}
}

func TestPut_Letterboxes(t *testing.T) {
	c := New(draw.NearestNeighbor)
	c.Register(1)
	c.SetCellSize(40, 30)

	c.Put(1, red(160, 60), t0)
	f, _ := c.Get(1)

	// 160x60 into 40x30 -> 40x15 centred vertically
	want := image.Rect(0, 7, 40, 22)
	if f.Placement != want {
		t.Fatalf("placement = %v, want %v", f.Placement, want)
	}
	if f.Scaled.Bounds().Dx() != 40 || f.Scaled.Bounds().Dy() != 15 {
		t.Fatalf("scaled bounds = %v", f.Scaled.Bounds())
	}
	if got := f.Scaled.RGBAAt(5, 5); got.R != 0xff || got.B != 0 {
		t.Fatalf("unexpected scaled pixel %v", got)
	}
}

func TestRescale_RefreshesExistingFrames(t *testing.T) {
	c := New(nil)
	c.Register(1)
	c.Register(2)
	c.SetCellSize(40, 30)
	c.Put(1, red(80, 60), t0)

	if changed := c.SetCellSize(40, 30); changed {
		t.Fatalf("same size should report unchanged")
	}
	c.SetCellSize(80, 60)
	if n := c.Rescale(); n != 1 {
		t.Fatalf("expected 1 rescaled frame, got %d", n)
	}
	f, _ := c.Get(1)
	if f.ScaledSize != image.Pt(80, 60) {
		t.Fatalf("scaled size = %v", f.ScaledSize)
	}
}

func TestStats_Bytes(t *testing.T) {
	c := New(nil)
	c.Register(1)
	c.Register(2)
	c.Put(1, red(10, 10), t0)

	s := c.Stats()
	if s.Entries != 2 || s.Frames != 1 {
		t.Fatalf("entries=%d frames=%d", s.Entries, s.Frames)
	}
	if s.Bytes != 400 {
		t.Fatalf("bytes = %d, want 400", s.Bytes)
	}
}

func TestParseFilter(t *testing.T) {
	for _, name := range Filters {
		if _, err := ParseFilter(name); err != nil {
			t.Errorf("ParseFilter(%q): %v", name, err)
		}
	}
	if _, err := ParseFilter("lanczos"); err == nil {
		t.Errorf("expected error for unknown filter")
	}
}
