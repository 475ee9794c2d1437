package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap is the grid key map. It implements help.KeyMap.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Click    key.Binding
	MoveUp   key.Binding
	MoveDown key.Binding
	Remove   key.Binding
	Add      key.Binding
	Movie    key.Binding
	AutoMin  key.Binding
	Pause    key.Binding
	Columns  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		Click:    key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "expand/collapse")),
		MoveUp:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "move earlier")),
		MoveDown: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "move later")),
		Remove:   key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "remove")),
		Add:      key.NewBinding(key.WithKeys("n", "+"), key.WithHelp("n", "add window")),
		Movie:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "movie mode")),
		AutoMin:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto-minimize")),
		Pause:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
		Columns:  key.NewBinding(key.WithKeys("3", "4", "5"), key.WithHelp("3-5", "columns")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Click, k.Add, k.Remove, k.Movie, k.Pause, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Click, k.MoveUp, k.MoveDown, k.Remove, k.Add},
		{k.Movie, k.AutoMin, k.Pause, k.Columns},
		{k.Help, k.Quit},
	}
}
