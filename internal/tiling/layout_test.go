package tiling

import (
	"testing"

	"github.com/1broseidon/pipgrid/internal/platform"
)

func ids(n int) []platform.WindowID {
	out := make([]platform.WindowID, n)
	for i := range out {
		out[i] = platform.WindowID(100 + i)
	}
	return out
}

func TestLayout_FourColumnsNineWindows(t *testing.T) {
	order := ids(9)
	cells := Layout(order, 4, 1920, 1080, DefaultOptions())

	if len(cells) != 9 {
		t.Fatalf("expected 9 cells, got %d", len(cells))
	}

	tests := []struct {
		index int
		row   int
		col   int
	}{
		{0, 0, 0}, {1, 0, 1}, {3, 0, 3},
		{4, 1, 0}, {7, 1, 3},
		{8, 2, 0},
	}
	for _, tt := range tests {
		c := cells[order[tt.index]]
		if c.Row != tt.row || c.Col != tt.col {
			t.Errorf("index %d at (%d,%d), want (%d,%d)", tt.index, c.Row, c.Col, tt.row, tt.col)
		}
	}

	// Deterministic for the same input.
	again := Layout(order, 4, 1920, 1080, DefaultOptions())
	for id, c := range cells {
		if again[id] != c {
			t.Fatalf("layout not deterministic for %d: %+v vs %+v", id, c, again[id])
		}
	}
}

func TestLayout_MoveUpOnlyChangesSwappedPair(t *testing.T) {
	order := ids(9)
	before := Layout(order, 4, 1920, 1080, DefaultOptions())

	// moveUp on index 5 swaps it with index 4.
	moved := append([]platform.WindowID(nil), order...)
	moved[4], moved[5] = moved[5], moved[4]
	after := Layout(moved, 4, 1920, 1080, DefaultOptions())

	changed := 0
	for _, id := range order {
		if before[id] != after[id] {
			changed++
		}
	}
	if changed != 2 {
		t.Fatalf("expected exactly 2 changed cells, got %d", changed)
	}
	if after[order[5]] != before[order[4]] || after[order[4]] != before[order[5]] {
		t.Fatalf("swapped windows did not exchange cells")
	}
}

func TestCellSize(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name   string
		rows   int
		cols   int
		vw, vh int
		wantW  int
		wantH  int
	}{
		// (1920 - 6*12) / 5 = 369.6 -> 369, height 276
		{"five columns fill width", 1, 5, 1920, 1080, 369, 276},
		// (800 - 4*12) / 3 = 250
		{"three columns", 1, 3, 800, 0, 250, 187},
		{"clamped to min", 1, 5, 400, 0, 180, 135},
		{"clamped to max", 1, 3, 4000, 0, 600, 450},
		// 3 rows at 1080: maxH = (1080-48)/3 = 344; 465 wide would be 348 tall
		{"trimmed to height", 3, 4, 1920, 1080, 458, 343},
		// 3 rows at 600: maxH = (600-48)/3 = 184 -> width 245
		{"shrinks to height", 3, 4, 1920, 600, 245, 183},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := CellSize(tt.rows, tt.cols, tt.vw, tt.vh, opts)
			if w != tt.wantW || h != tt.wantH {
				t.Fatalf("CellSize = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestLayout_GapPositions(t *testing.T) {
	order := ids(4)
	cells := Layout(order, 3, 800, 0, DefaultOptions())

	// 250x187 cells with a 12 px gap
	want := map[int]platform.Rect{
		0: {X: 12, Y: 12, Width: 250, Height: 187},
		2: {X: 12 + 2*262, Y: 12, Width: 250, Height: 187},
		3: {X: 12, Y: 12 + 199, Width: 250, Height: 187},
	}
	for i, r := range want {
		if got := cells[order[i]].Rect; got != r {
			t.Errorf("cell %d = %+v, want %+v", i, got, r)
		}
	}
}

func TestValidateColumns(t *testing.T) {
	for n := 0; n <= 7; n++ {
		err := ValidateColumns(n)
		valid := n >= 3 && n <= 5
		if valid && err != nil {
			t.Errorf("ValidateColumns(%d) unexpected error: %v", n, err)
		}
		if !valid && err == nil {
			t.Errorf("ValidateColumns(%d) expected error", n)
		}
	}
}

func TestLetterbox(t *testing.T) {
	cell := platform.Rect{Width: 400, Height: 300}

	tests := []struct {
		name       string
		srcW, srcH int
		want       platform.Rect
	}{
		{"same aspect", 800, 600, platform.Rect{X: 0, Y: 0, Width: 400, Height: 300}},
		{"wide source", 1600, 900, platform.Rect{X: 0, Y: 37, Width: 400, Height: 225}},
		{"tall source", 600, 900, platform.Rect{X: 100, Y: 0, Width: 200, Height: 300}},
		{"empty source", 0, 100, platform.Rect{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Letterbox(tt.srcW, tt.srcH, cell); got != tt.want {
				t.Fatalf("Letterbox(%d,%d) = %+v, want %+v", tt.srcW, tt.srcH, got, tt.want)
			}
		})
	}
}

func TestRows(t *testing.T) {
	tests := []struct{ n, cols, want int }{
		{0, 4, 0}, {1, 4, 1}, {4, 4, 1}, {5, 4, 2}, {9, 4, 3},
	}
	for _, tt := range tests {
		if got := Rows(tt.n, tt.cols); got != tt.want {
			t.Errorf("Rows(%d,%d) = %d, want %d", tt.n, tt.cols, got, tt.want)
		}
	}
}
