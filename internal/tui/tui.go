package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/pipgrid/internal/config"
)

// windowTitle is set on the terminal so the daemon can recognise the TUI
// through exclude_titles and keep it off the candidate list.
const windowTitle = config.DefaultTUITitle

// Run starts the grid TUI against a running daemon and blocks until the
// user quits.
func Run(d Daemon) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}

	p := tea.NewProgram(newModel(d), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
