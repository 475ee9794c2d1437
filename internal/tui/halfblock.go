package tui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
)

const upperHalfBlock = "▀"

// renderHalfBlock draws img into cols x rows terminal cells. Each cell
// shows two vertically stacked pixels: the foreground colours the upper
// half block and the background shows through the lower half.
func renderHalfBlock(img image.Image, cols, rows int) []string {
	if img == nil || cols <= 0 || rows <= 0 || img.Bounds().Empty() {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, cols, rows*2))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	lines := make([]string, rows)
	var sb strings.Builder
	for y := 0; y < rows; y++ {
		sb.Reset()
		var lastTop, lastBottom color.RGBA
		first := true
		for x := 0; x < cols; x++ {
			top := dst.RGBAAt(x, 2*y)
			bottom := dst.RGBAAt(x, 2*y+1)
			if first || top != lastTop {
				fmt.Fprintf(&sb, "\x1b[38;2;%d;%d;%dm", top.R, top.G, top.B)
			}
			if first || bottom != lastBottom {
				fmt.Fprintf(&sb, "\x1b[48;2;%d;%d;%dm", bottom.R, bottom.G, bottom.B)
			}
			sb.WriteString(upperHalfBlock)
			lastTop, lastBottom, first = top, bottom, false
		}
		sb.WriteString("\x1b[0m")
		lines[y] = sb.String()
	}
	return lines
}

// placeholderBlock fills cols x rows with a dim pattern and a centred label.
func placeholderBlock(label string, cols, rows int) []string {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	lines := make([]string, rows)
	blank := strings.Repeat("·", cols)
	for i := range lines {
		lines[i] = blank
	}
	if r := []rune(label); len(r) <= cols {
		pad := (cols - len(r)) / 2
		lines[rows/2] = strings.Repeat("·", pad) + label + strings.Repeat("·", cols-pad-len(r))
	}
	return lines
}
