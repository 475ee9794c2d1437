package tiling

import (
	"fmt"

	"github.com/1broseidon/pipgrid/internal/platform"
)

const (
	MinColumns = 3
	MaxColumns = 5
)

// Options controls thumbnail geometry.
type Options struct {
	Gap          int
	AspectWidth  int
	AspectHeight int
	MinWidth     int
	MaxWidth     int
}

// DefaultOptions returns 4:3 cells between 180 and 600 px wide with a 12 px gap.
func DefaultOptions() Options {
	return Options{
		Gap:          12,
		AspectWidth:  4,
		AspectHeight: 3,
		MinWidth:     180,
		MaxWidth:     600,
	}
}

// GridCell is the derived placement of one window in the grid.
type GridCell struct {
	Row  int
	Col  int
	Rect platform.Rect
}

// ValidateColumns checks the user-configurable column count.
func ValidateColumns(n int) error {
	if n < MinColumns || n > MaxColumns {
		return fmt.Errorf("column count must be between %d and %d, got %d", MinColumns, MaxColumns, n)
	}
	return nil
}

// Rows returns the number of grid rows needed for n windows.
func Rows(n, cols int) int {
	if n <= 0 || cols <= 0 {
		return 0
	}
	return (n + cols - 1) / cols
}

// CellSize computes the thumbnail size for a grid of rows x cols inside the
// viewport. Width fills the viewport evenly and height follows the aspect
// ratio; when the rows would overflow the viewport height the cell shrinks
// to fit. The width is clamped to [MinWidth, MaxWidth] either way, so a very
// small viewport scrolls rather than producing unreadable cells.
func CellSize(rows, cols, viewportW, viewportH int, opts Options) (width, height int) {
	opts = normalize(opts)
	if cols <= 0 {
		return 0, 0
	}

	// Gaps: (cols + 1) * gap, one before each column and one after
	width = (viewportW - (cols+1)*opts.Gap) / cols

	if rows > 0 && viewportH > 0 {
		maxH := (viewportH - (rows+1)*opts.Gap) / rows
		if maxH > 0 && width*opts.AspectHeight/opts.AspectWidth > maxH {
			width = maxH * opts.AspectWidth / opts.AspectHeight
		}
	}

	if width < opts.MinWidth {
		width = opts.MinWidth
	}
	if width > opts.MaxWidth {
		width = opts.MaxWidth
	}
	height = width * opts.AspectHeight / opts.AspectWidth
	return width, height
}

// Layout maps each window to its cell. Position is determined only by the
// window's index in ids: row = i / cols, col = i % cols.
func Layout(ids []platform.WindowID, cols, viewportW, viewportH int, opts Options) map[platform.WindowID]GridCell {
	opts = normalize(opts)
	cells := make(map[platform.WindowID]GridCell, len(ids))
	if len(ids) == 0 || cols <= 0 {
		return cells
	}

	w, h := CellSize(Rows(len(ids), cols), cols, viewportW, viewportH, opts)

	for i, id := range ids {
		row := i / cols
		col := i % cols
		cells[id] = GridCell{
			Row: row,
			Col: col,
			Rect: platform.Rect{
				X:      opts.Gap + col*(w+opts.Gap),
				Y:      opts.Gap + row*(h+opts.Gap),
				Width:  w,
				Height: h,
			},
		}
	}
	return cells
}

// Letterbox fits a srcW x srcH frame inside cell, preserving its aspect
// ratio, and centres it. The result is relative to the cell origin.
func Letterbox(srcW, srcH int, cell platform.Rect) platform.Rect {
	if srcW <= 0 || srcH <= 0 || cell.Empty() {
		return platform.Rect{}
	}

	w := cell.Width
	h := srcH * cell.Width / srcW
	if h > cell.Height {
		h = cell.Height
		w = srcW * cell.Height / srcH
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	return platform.Rect{
		X:      (cell.Width - w) / 2,
		Y:      (cell.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}

func normalize(opts Options) Options {
	def := DefaultOptions()
	if opts.Gap < 0 {
		opts.Gap = 0
	}
	if opts.AspectWidth <= 0 || opts.AspectHeight <= 0 {
		opts.AspectWidth, opts.AspectHeight = def.AspectWidth, def.AspectHeight
	}
	if opts.MinWidth <= 0 {
		opts.MinWidth = def.MinWidth
	}
	if opts.MaxWidth < opts.MinWidth {
		opts.MaxWidth = opts.MinWidth
	}
	return opts
}
