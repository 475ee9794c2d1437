package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/pipgrid/internal/ipc"
)

var (
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	selectedCardStyle = cardStyle.BorderForeground(lipgloss.Color("62"))
	expandedCardStyle = cardStyle.BorderForeground(lipgloss.Color("42"))

	cardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250"))
)

var stateColors = map[string]lipgloss.Color{
	"restored":  lipgloss.Color("42"),
	"minimized": lipgloss.Color("214"),
	"hidden":    lipgloss.Color("241"),
	"closed":    lipgloss.Color("196"),
}

// cardGeometry returns the thumbnail area of one card in terminal cells.
// Half blocks hold two pixels per cell vertically, so rows is half the
// pixel height implied by the board's cell aspect.
func (m model) cardGeometry(width int) (cols, rows int) {
	cols = width/m.columns() - cardChromeColumns
	if cols < 8 {
		cols = 8
	}
	rows = defaultThumbRows
	if m.board != nil && m.board.CellWidth > 0 && m.board.CellHeight > 0 {
		rows = cols * m.board.CellHeight / m.board.CellWidth / 2
	} else if cols != defaultThumbCols {
		rows = cols * defaultThumbRows / defaultThumbCols
	}
	if rows < 2 {
		rows = 2
	}
	return cols, rows
}

// visibleRows returns the first and one-past-last grid row to draw so the
// selected tile stays on screen.
func visibleRows(selected, columns, total, cardHeight, height int) (first, last int) {
	totalRows := (total + columns - 1) / columns
	fit := height / cardHeight
	if fit < 1 {
		fit = 1
	}
	selRow := selected / columns
	if selRow >= fit {
		first = selRow - fit + 1
	}
	last = first + fit
	if last > totalRows {
		last = totalRows
	}
	return first, last
}

func (m model) renderGrid(width, height int) string {
	cols, rows := m.cardGeometry(width)
	columns := m.columns()
	tiles := m.board.Tiles

	first, last := visibleRows(m.selected, columns, len(tiles), rows+cardChromeLines, height)

	var gridRows []string
	for r := first; r < last; r++ {
		var cards []string
		for c := 0; c < columns; c++ {
			i := r*columns + c
			if i >= len(tiles) {
				break
			}
			cards = append(cards, m.renderCard(tiles[i], i == m.selected, cols, rows))
		}
		gridRows = append(gridRows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, gridRows...)
}

func (m model) renderCard(t ipc.TileInfo, selected bool, cols, rows int) string {
	style := cardStyle
	switch {
	case selected:
		style = selectedCardStyle
	case t.Expanded:
		style = expandedCardStyle
	}

	title := t.Title
	if title == "" {
		title = fmt.Sprintf("0x%x", t.ID)
	}
	title = cardTitleStyle.Render(truncate(title, cols))

	var body []string
	if e := m.thumbs[t.ID]; e != nil && e.img != nil && !t.Placeholder {
		body = renderHalfBlock(e.img, cols, rows)
	} else {
		label := "waiting"
		if t.Placeholder {
			label = t.State
		}
		body = placeholderBlock(label, cols, rows)
		for i := range body {
			body[i] = dimStyle.Render(body[i])
		}
	}

	content := title + "\n" + strings.Join(body, "\n") + "\n" + truncateStyled(cardFooter(t), cols)
	return style.Width(cols + 2).Render(content)
}

func cardFooter(t ipc.TileInfo) string {
	color, ok := stateColors[t.State]
	if !ok {
		color = lipgloss.Color("241")
	}
	dot := lipgloss.NewStyle().Foreground(color).Render("●")

	state := t.State
	if t.Expanded {
		state = "expanded"
	}
	parts := []string{dot + " " + state, t.CPU}
	if t.FPS > 0 {
		parts = append(parts, fmt.Sprintf("%.1ffps", t.FPS))
	}
	if t.Failures > 0 {
		parts = append(parts, fmt.Sprintf("%d fail", t.Failures))
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func truncateStyled(s string, n int) string {
	return lipgloss.NewStyle().MaxWidth(n).Render(s)
}
