package tui

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/pipgrid/internal/ipc"
)

const (
	pollInterval      = 250 * time.Millisecond
	statusTimeout     = 3 * time.Second
	thumbFetchMinGap  = 500 * time.Millisecond
	defaultThumbCols  = 24
	defaultThumbRows  = 6
	cardChromeLines   = 4 // border top/bottom, title, footer
	cardChromeColumns = 4 // border left/right, padding
)

// Daemon is the subset of the IPC client the TUI drives.
type Daemon interface {
	GetBoard() (*ipc.BoardData, error)
	GetThumbnail(id uint32, full bool) (*ipc.ThumbnailData, error)
	ListCandidates() (*ipc.CandidatesData, error)
	AddWindow(id uint32) (*ipc.CandidateInfo, error)
	RemoveWindow(id uint32) error
	Reorder(id uint32, direction string) (bool, error)
	Click(id uint32) (*ipc.ClickData, error)
	SetColumns(n int) error
	SetMovieMode(on bool) error
	SetAutoMinimize(on bool) error
	SetPaused(on bool) error
}

var _ Daemon = (*ipc.Client)(nil)

type tickMsg time.Time

type boardMsg struct {
	board *ipc.BoardData
	err   error
}

type thumbMsg struct {
	id         uint32
	capturedAt time.Time
	img        image.Image
	err        error
}

type candidatesMsg struct {
	windows []ipc.CandidateInfo
	err     error
}

// actionMsg reports the outcome of a command sent to the daemon. A nil err
// with an empty text only triggers a board refresh.
type actionMsg struct {
	text string
	err  error
}

type clearStatusMsg struct{}

type thumbEntry struct {
	capturedAt time.Time
	fetchedAt  time.Time
	img        image.Image
	inFlight   bool
}

// model is the root bubbletea model for the grid view.
type model struct {
	daemon Daemon
	keys   keyMap
	help   help.Model

	board     *ipc.BoardData
	connected bool
	lastErr   string
	selected  int
	thumbs    map[uint32]*thumbEntry

	picker     picker
	showPicker bool

	statusText  string
	statusIsErr bool

	width  int
	height int
	now    func() time.Time
}

func newModel(d Daemon) model {
	return model{
		daemon: d,
		keys:   defaultKeyMap(),
		help:   help.New(),
		picker: newPicker(),
		thumbs: make(map[uint32]*thumbEntry),
		now:    time.Now,
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(tea.SetWindowTitle(windowTitle), m.fetchBoard(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) fetchBoard() tea.Cmd {
	d := m.daemon
	return func() tea.Msg {
		b, err := d.GetBoard()
		return boardMsg{board: b, err: err}
	}
}

func (m model) fetchThumb(id uint32) tea.Cmd {
	d := m.daemon
	return func() tea.Msg {
		t, err := d.GetThumbnail(id, false)
		if err != nil {
			return thumbMsg{id: id, err: err}
		}
		img, err := png.Decode(bytes.NewReader(t.PNG))
		if err != nil {
			return thumbMsg{id: id, err: fmt.Errorf("decode thumbnail: %w", err)}
		}
		return thumbMsg{id: id, capturedAt: t.CapturedAt, img: img}
	}
}

func (m model) fetchCandidates() tea.Cmd {
	d := m.daemon
	return func() tea.Msg {
		data, err := d.ListCandidates()
		if err != nil {
			return candidatesMsg{err: err}
		}
		return candidatesMsg{windows: data.Windows}
	}
}

// act wraps a daemon call so it runs off the update loop.
func act(text string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: text}
	}
}

func clearStatusAfter() tea.Cmd {
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg { return clearStatusMsg{} })
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.picker.setSize(msg.Width, msg.Height-2)
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchBoard(), tick())

	case boardMsg:
		return m.applyBoard(msg)

	case thumbMsg:
		e := m.thumbs[msg.id]
		if e == nil {
			return m, nil
		}
		e.inFlight = false
		if msg.err == nil {
			e.img = msg.img
			e.capturedAt = msg.capturedAt
		}
		return m, nil

	case candidatesMsg:
		if msg.err != nil {
			return m, m.setStatus(msg.err.Error(), true)
		}
		m.picker.setCandidates(msg.windows)
		m.showPicker = true
		return m, nil

	case pickedMsg:
		m.showPicker = false
		id := msg.id
		return m, act(fmt.Sprintf("added 0x%x", id), func() error {
			_, err := m.daemon.AddWindow(id)
			return err
		})

	case actionMsg:
		cmds := []tea.Cmd{m.fetchBoard()}
		if msg.err != nil {
			cmds = append(cmds, m.setStatus(msg.err.Error(), true))
		} else if msg.text != "" {
			cmds = append(cmds, m.setStatus(msg.text, false))
		}
		return m, tea.Batch(cmds...)

	case clearStatusMsg:
		m.statusText = ""
		m.statusIsErr = false
		return m, nil

	case tea.KeyMsg:
		if m.showPicker {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			var cmd tea.Cmd
			var closed bool
			m.picker, cmd, closed = m.picker.update(msg)
			if closed {
				m.showPicker = false
			}
			return m, cmd
		}
		return m.handleKey(msg)
	}

	if m.showPicker {
		var cmd tea.Cmd
		m.picker, cmd, _ = m.picker.update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusText = text
	m.statusIsErr = isErr
	return clearStatusAfter()
}

func (m model) applyBoard(msg boardMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.connected = false
		m.lastErr = msg.err.Error()
		return m, nil
	}
	m.connected = true
	m.lastErr = ""
	m.board = msg.board

	if n := len(m.board.Tiles); m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}

	live := make(map[uint32]bool, len(m.board.Tiles))
	var cmds []tea.Cmd
	now := m.now()
	for _, t := range m.board.Tiles {
		live[t.ID] = true
		if t.CapturedAt.IsZero() {
			continue
		}
		e := m.thumbs[t.ID]
		if e == nil {
			e = &thumbEntry{}
			m.thumbs[t.ID] = e
		}
		if e.inFlight || !t.CapturedAt.After(e.capturedAt) || now.Sub(e.fetchedAt) < thumbFetchMinGap {
			continue
		}
		e.inFlight = true
		e.fetchedAt = now
		cmds = append(cmds, m.fetchThumb(t.ID))
	}
	for id := range m.thumbs {
		if !live[id] {
			delete(m.thumbs, id)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m model) selectedTile() (ipc.TileInfo, bool) {
	if m.board == nil || m.selected < 0 || m.selected >= len(m.board.Tiles) {
		return ipc.TileInfo{}, false
	}
	return m.board.Tiles[m.selected], true
}

func (m model) columns() int {
	if m.board == nil || m.board.Columns <= 0 {
		return 1
	}
	return m.board.Columns
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := 0
	if m.board != nil {
		n = len(m.board.Tiles)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Left):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case key.Matches(msg, m.keys.Right):
		if m.selected < n-1 {
			m.selected++
		}
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.selected-m.columns() >= 0 {
			m.selected -= m.columns()
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.selected+m.columns() < n {
			m.selected += m.columns()
		}
		return m, nil
	case key.Matches(msg, m.keys.Add):
		return m, m.fetchCandidates()
	}

	if m.board != nil {
		switch {
		case key.Matches(msg, m.keys.Movie):
			on := !m.board.MovieMode
			return m, act(fmt.Sprintf("movie mode %s", onOff(on)), func() error { return m.daemon.SetMovieMode(on) })
		case key.Matches(msg, m.keys.AutoMin):
			on := !m.board.AutoMinimize
			return m, act(fmt.Sprintf("auto-minimize %s", onOff(on)), func() error { return m.daemon.SetAutoMinimize(on) })
		case key.Matches(msg, m.keys.Pause):
			on := !m.board.Paused
			text := "capture resumed"
			if on {
				text = "capture paused"
			}
			return m, act(text, func() error { return m.daemon.SetPaused(on) })
		case key.Matches(msg, m.keys.Columns):
			cols := int(msg.String()[0] - '0')
			return m, act(fmt.Sprintf("%d columns", cols), func() error { return m.daemon.SetColumns(cols) })
		}
	}

	tile, ok := m.selectedTile()
	if !ok {
		return m, nil
	}
	id := tile.ID
	switch {
	case key.Matches(msg, m.keys.Click):
		return m, act("", func() error {
			_, err := m.daemon.Click(id)
			return err
		})
	case key.Matches(msg, m.keys.Remove):
		return m, act(fmt.Sprintf("removed %s", tile.Title), func() error { return m.daemon.RemoveWindow(id) })
	case key.Matches(msg, m.keys.MoveUp):
		if m.selected > 0 {
			m.selected--
		}
		return m, act("", func() error {
			_, err := m.daemon.Reorder(id, "up")
			return err
		})
	case key.Matches(msg, m.keys.MoveDown):
		if m.selected < n-1 {
			m.selected++
		}
		return m, act("", func() error {
			_, err := m.daemon.Reorder(id, "down")
			return err
		})
	}
	return m, nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := m.renderStatusBar()
	helpBar := lipgloss.NewStyle().Padding(0, 1).Render(m.help.View(m.keys))
	if m.statusText != "" {
		fg := lipgloss.Color("42")
		if m.statusIsErr {
			fg = lipgloss.Color("196")
		}
		helpBar = lipgloss.NewStyle().Foreground(fg).Padding(0, 1).Render(m.statusText) + "\n" + helpBar
	}

	contentHeight := m.height - lipgloss.Height(statusBar) - lipgloss.Height(helpBar)
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	switch {
	case m.showPicker:
		content = m.picker.view()
	case !m.connected:
		content = dimStyle.Render("  daemon not reachable: " + m.lastErr + "\n  start it with `pipgrid daemon`")
	case m.board == nil || len(m.board.Tiles) == 0:
		content = dimStyle.Render("  no windows on the grid, press n to add one")
	default:
		content = m.renderGrid(m.width, contentHeight)
	}
	content = lipgloss.NewStyle().Height(contentHeight).MaxHeight(contentHeight).Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, statusBar, content, helpBar)
}

func (m model) renderStatusBar() string {
	var status string
	if m.connected && m.board != nil {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
		parts := []string{
			dot + " " + m.board.Focus,
			fmt.Sprintf("%d windows", len(m.board.Tiles)),
			fmt.Sprintf("%d cols", m.board.Columns),
		}
		if m.board.MovieMode {
			parts = append(parts, "movie")
		}
		if m.board.Paused {
			parts = append(parts, "paused")
		}
		if m.board.AutoMinimize {
			parts = append(parts, "auto-min")
		}
		if n := len(m.board.Notices); n > 0 {
			parts = append(parts, "! "+m.board.Notices[n-1].Message)
		}
		status = strings.Join(parts, "  ")
	} else {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("●")
		status = dot + " daemon not running"
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1).
		Render(status)
}
