package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/pipgrid/internal/ipc"
)

type fakeDaemon struct {
	board      ipc.BoardData
	candidates []ipc.CandidateInfo

	clicks   []uint32
	removed  []uint32
	added    []uint32
	reorders []string
	columns  []int
	movie    []bool
	automin  []bool
	paused   []bool
}

func (f *fakeDaemon) GetBoard() (*ipc.BoardData, error) {
	b := f.board
	return &b, nil
}

func (f *fakeDaemon) GetThumbnail(id uint32, full bool) (*ipc.ThumbnailData, error) {
	return &ipc.ThumbnailData{ID: id}, nil
}

func (f *fakeDaemon) ListCandidates() (*ipc.CandidatesData, error) {
	return &ipc.CandidatesData{Windows: f.candidates}, nil
}

func (f *fakeDaemon) AddWindow(id uint32) (*ipc.CandidateInfo, error) {
	f.added = append(f.added, id)
	return &ipc.CandidateInfo{ID: id}, nil
}

func (f *fakeDaemon) RemoveWindow(id uint32) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeDaemon) Reorder(id uint32, direction string) (bool, error) {
	f.reorders = append(f.reorders, direction)
	return true, nil
}

func (f *fakeDaemon) Click(id uint32) (*ipc.ClickData, error) {
	f.clicks = append(f.clicks, id)
	return &ipc.ClickData{Focus: "expanded", ExpandedID: id}, nil
}

func (f *fakeDaemon) SetColumns(n int) error {
	f.columns = append(f.columns, n)
	return nil
}

func (f *fakeDaemon) SetMovieMode(on bool) error {
	f.movie = append(f.movie, on)
	return nil
}

func (f *fakeDaemon) SetAutoMinimize(on bool) error {
	f.automin = append(f.automin, on)
	return nil
}

func (f *fakeDaemon) SetPaused(on bool) error {
	f.paused = append(f.paused, on)
	return nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func tiles(n int) []ipc.TileInfo {
	out := make([]ipc.TileInfo, n)
	for i := range out {
		out[i] = ipc.TileInfo{ID: uint32(i + 1), Title: "w", OrderIndex: i, State: "restored", CPU: "N/A"}
	}
	return out
}

// loaded returns a model that has received one board snapshot.
func loaded(t *testing.T, d *fakeDaemon) model {
	t.Helper()
	m := newModel(d)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	b := d.board
	next, _ = next.(model).Update(boardMsg{board: &b})
	return next.(model)
}

func press(t *testing.T, m model, msg tea.KeyMsg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func TestSelectionNavigation(t *testing.T) {
	d := &fakeDaemon{board: ipc.BoardData{Columns: 3, Tiles: tiles(5)}}
	m := loaded(t, d)

	steps := []struct {
		key  tea.KeyMsg
		want int
	}{
		{tea.KeyMsg{Type: tea.KeyLeft}, 0},
		{tea.KeyMsg{Type: tea.KeyRight}, 1},
		{tea.KeyMsg{Type: tea.KeyDown}, 4},
		{tea.KeyMsg{Type: tea.KeyDown}, 4},
		{runes("l"), 4},
		{runes("k"), 1},
		{runes("h"), 0},
		{tea.KeyMsg{Type: tea.KeyUp}, 0},
	}
	for i, s := range steps {
		m, _ = press(t, m, s.key)
		if m.selected != s.want {
			t.Fatalf("step %d (%s): selected = %d, want %d", i, s.key, m.selected, s.want)
		}
	}
}

func TestKeysDriveDaemon(t *testing.T) {
	d := &fakeDaemon{board: ipc.BoardData{Columns: 3, Tiles: tiles(3), AutoMinimize: true}}
	m := loaded(t, d)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})

	keys := []tea.KeyMsg{
		{Type: tea.KeyEnter},
		runes("x"),
		runes("m"),
		runes("a"),
		runes("p"),
		runes("4"),
	}
	for _, k := range keys {
		var cmd tea.Cmd
		m, cmd = press(t, m, k)
		if cmd == nil {
			t.Fatalf("key %s returned no command", k)
		}
		if msg, ok := cmd().(actionMsg); !ok || msg.err != nil {
			t.Fatalf("key %s: unexpected message %+v", k, msg)
		}
	}

	if len(d.clicks) != 1 || d.clicks[0] != 2 {
		t.Errorf("clicks = %v, want [2]", d.clicks)
	}
	if len(d.removed) != 1 || d.removed[0] != 2 {
		t.Errorf("removed = %v, want [2]", d.removed)
	}
	if len(d.movie) != 1 || !d.movie[0] {
		t.Errorf("movie = %v, want [true]", d.movie)
	}
	if len(d.automin) != 1 || d.automin[0] {
		t.Errorf("automin = %v, want [false]", d.automin)
	}
	if len(d.paused) != 1 || !d.paused[0] {
		t.Errorf("paused = %v, want [true]", d.paused)
	}
	if len(d.columns) != 1 || d.columns[0] != 4 {
		t.Errorf("columns = %v, want [4]", d.columns)
	}
}

func TestReorderMovesSelection(t *testing.T) {
	d := &fakeDaemon{board: ipc.BoardData{Columns: 3, Tiles: tiles(3)}}
	m := loaded(t, d)

	m, cmd := press(t, m, runes("d"))
	cmd()
	if m.selected != 1 {
		t.Fatalf("selected = %d after move later, want 1", m.selected)
	}
	m, cmd = press(t, m, runes("u"))
	cmd()
	if m.selected != 0 {
		t.Fatalf("selected = %d after move earlier, want 0", m.selected)
	}
	if len(d.reorders) != 2 || d.reorders[0] != "down" || d.reorders[1] != "up" {
		t.Fatalf("reorders = %v", d.reorders)
	}
}

func TestBoardUpdateClampsSelectionAndFetchesThumbnails(t *testing.T) {
	captured := time.Unix(100, 0)
	d := &fakeDaemon{board: ipc.BoardData{Columns: 3, Tiles: tiles(4)}}
	m := loaded(t, d)
	m.selected = 3

	smaller := ipc.BoardData{Columns: 3, Tiles: tiles(2)}
	smaller.Tiles[1].CapturedAt = captured
	next, _ := m.Update(boardMsg{board: &smaller})
	m = next.(model)

	if m.selected != 1 {
		t.Fatalf("selected = %d, want 1", m.selected)
	}
	if e := m.thumbs[2]; e == nil || !e.inFlight {
		t.Fatalf("expected thumbnail fetch for window 2, got %+v", e)
	}
	if _, ok := m.thumbs[1]; ok {
		t.Fatalf("window 1 has no frame yet and should not be fetched")
	}

	next, _ = m.Update(thumbMsg{id: 2, capturedAt: captured})
	m = next.(model)
	next, _ = m.Update(boardMsg{board: &smaller})
	m = next.(model)
	if m.thumbs[2].inFlight {
		t.Fatalf("unchanged frame should not be fetched again")
	}
}

func TestAddPickerAddsUnmonitoredWindow(t *testing.T) {
	d := &fakeDaemon{
		board: ipc.BoardData{Columns: 3, Tiles: tiles(1)},
		candidates: []ipc.CandidateInfo{
			{ID: 1, Title: "w", Monitored: true},
			{ID: 9, Title: "music", PID: 90},
		},
	}
	m := loaded(t, d)

	m, cmd := press(t, m, runes("n"))
	next, _ := m.Update(cmd())
	m = next.(model)
	if !m.showPicker {
		t.Fatalf("expected picker to open")
	}
	if n := len(m.picker.list.Items()); n != 1 {
		t.Fatalf("picker items = %d, want 1", n)
	}

	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.showPicker {
		t.Fatalf("expected picker to close after enter")
	}
	picked, ok := cmd().(pickedMsg)
	if !ok || picked.id != 9 {
		t.Fatalf("expected pickedMsg for 9, got %+v", picked)
	}
	_, cmd = m.Update(picked)
	cmd()
	if len(d.added) != 1 || d.added[0] != 9 {
		t.Fatalf("added = %v, want [9]", d.added)
	}
}

func TestPickerEscCloses(t *testing.T) {
	d := &fakeDaemon{
		board:      ipc.BoardData{Columns: 3},
		candidates: []ipc.CandidateInfo{{ID: 4, Title: "x"}},
	}
	m := loaded(t, d)
	m, cmd := press(t, m, runes("n"))
	next, _ := m.Update(cmd())
	m = next.(model)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.showPicker {
		t.Fatalf("expected esc to close picker")
	}
	if len(d.added) != 0 {
		t.Fatalf("nothing should be added, got %v", d.added)
	}
}

func TestVisibleRowsKeepsSelectionOnScreen(t *testing.T) {
	tests := []struct {
		name                string
		selected, total     int
		height              int
		wantFirst, wantLast int
	}{
		{"fits", 0, 6, 40, 0, 2},
		{"scrolls to selection", 10, 12, 20, 2, 4},
		{"tiny terminal", 4, 6, 3, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := visibleRows(tt.selected, 3, tt.total, 10, tt.height)
			if first != tt.wantFirst || last != tt.wantLast {
				t.Fatalf("visibleRows() = %d,%d want %d,%d", first, last, tt.wantFirst, tt.wantLast)
			}
		})
	}
}

func TestViewRendersCards(t *testing.T) {
	d := &fakeDaemon{board: ipc.BoardData{Columns: 3, Focus: "idle", Tiles: tiles(2), CellWidth: 4, CellHeight: 3}}
	d.board.Tiles[0].Title = "editor"
	m := loaded(t, d)

	out := m.View()
	for _, want := range []string{"editor", "idle", "2 windows", "restored"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
