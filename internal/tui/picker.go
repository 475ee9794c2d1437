package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/pipgrid/internal/ipc"
)

// pickedMsg is sent when a candidate window is chosen in the picker.
type pickedMsg struct {
	id uint32
}

type candidateItem struct {
	window ipc.CandidateInfo
}

func (i candidateItem) Title() string {
	title := i.window.Title
	if title == "" {
		title = "(untitled)"
	}
	return title
}

func (i candidateItem) Description() string {
	if i.window.AppID != "" {
		return fmt.Sprintf("%s · pid %d · 0x%x", i.window.AppID, i.window.PID, i.window.ID)
	}
	return fmt.Sprintf("pid %d · 0x%x", i.window.PID, i.window.ID)
}

func (i candidateItem) FilterValue() string {
	return i.window.Title + " " + i.window.AppID
}

// picker lists unmonitored windows for adding to the grid.
type picker struct {
	list list.Model
}

func newPickerList() list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("62")).
		BorderLeftForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("62")).
		BorderLeftForeground(lipgloss.Color("62"))

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Add window"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("250")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	return l
}

func newPicker() picker {
	return picker{list: newPickerList()}
}

func (p *picker) setSize(w, h int) {
	if h < 1 {
		h = 1
	}
	p.list.SetSize(w, h)
}

// setCandidates loads the windows that are not yet on the grid, sorted by
// title.
func (p *picker) setCandidates(windows []ipc.CandidateInfo) {
	var avail []ipc.CandidateInfo
	for _, w := range windows {
		if !w.Monitored {
			avail = append(avail, w)
		}
	}
	sort.SliceStable(avail, func(i, j int) bool {
		return strings.ToLower(avail[i].Title) < strings.ToLower(avail[j].Title)
	})

	items := make([]list.Item, len(avail))
	for i, w := range avail {
		items[i] = candidateItem{window: w}
	}
	p.list.ResetFilter()
	p.list.SetItems(items)
	p.list.Select(0)
}

// update handles a message while the picker is open. closed reports that
// the picker should be dismissed.
func (p picker) update(msg tea.Msg) (picker, tea.Cmd, bool) {
	if km, ok := msg.(tea.KeyMsg); ok && p.list.FilterState() != list.Filtering {
		switch km.String() {
		case "esc", "q":
			if p.list.FilterState() == list.FilterApplied {
				p.list.ResetFilter()
				return p, nil, false
			}
			return p, nil, true
		case "enter":
			item, ok := p.list.SelectedItem().(candidateItem)
			if !ok {
				return p, nil, true
			}
			id := item.window.ID
			return p, func() tea.Msg { return pickedMsg{id: id} }, true
		}
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return p, cmd, false
}

func (p picker) view() string {
	if len(p.list.Items()) == 0 {
		return dimStyle.Render("  no other windows to add (esc to close)")
	}
	return p.list.View()
}
