package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/1broseidon/pipgrid/internal/ipc"
	"github.com/1broseidon/pipgrid/internal/palette"
)

// pickClient is what applyChoice needs from the daemon.
type pickClient interface {
	GetBoard() (*ipc.BoardData, error)
	AddWindow(id uint32) (*ipc.CandidateInfo, error)
	RemoveWindow(id uint32) error
	Click(id uint32) (*ipc.ClickData, error)
}

func runPick(args []string) int {
	fs := flag.NewFlagSet("pick", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/pipgrid/config.yaml)")
	backendName := fs.String("backend", "", "Launcher to use (rofi, fuzzel, wofi, dmenu; default from config)")

	if isHelpArg(args) {
		fmt.Fprintln(os.Stderr, "Usage: pipgrid pick [--path PATH] [--backend NAME]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Choose a window from a launcher menu and add it to the grid.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings (rofi only):")
		fmt.Fprintln(os.Stderr, "  Enter      - Add an available window, expand a monitored one")
		fmt.Fprintln(os.Stderr, "  Alt+Enter  - Add and expand")
		fmt.Fprintln(os.Stderr, "  Alt+d      - Remove a monitored window")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Backends: rofi, fuzzel, wofi, dmenu (configured via palette_backend, default: auto).")
		return 0
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	name := *backendName
	if name == "" {
		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		name = res.Config.PaletteBackend
	}
	backend, err := palette.NewBackend(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	client := ipc.NewClient()
	data, err := client.ListCandidates()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	candidates := make([]palette.Candidate, 0, len(data.Windows))
	for _, w := range data.Windows {
		candidates = append(candidates, palette.Candidate{
			ID:        w.ID,
			PID:       w.PID,
			AppID:     w.AppID,
			Title:     w.Title,
			Monitored: w.Monitored,
		})
	}

	choice, err := palette.Pick(backend, candidates)
	if err != nil {
		if errors.Is(err, palette.ErrCancelled) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := applyChoice(client, choice); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// applyChoice sends the picked operation to the daemon. Expanding a window
// that is already expanded is a no-op so the pick never collapses it.
func applyChoice(c pickClient, choice palette.Choice) error {
	switch choice.Op {
	case palette.OpAdd:
		_, err := c.AddWindow(choice.ID)
		return err
	case palette.OpAddExpand:
		if _, err := c.AddWindow(choice.ID); err != nil {
			return err
		}
		_, err := c.Click(choice.ID)
		return err
	case palette.OpExpand:
		board, err := c.GetBoard()
		if err != nil {
			return err
		}
		if board.ExpandedID == choice.ID {
			return nil
		}
		_, err = c.Click(choice.ID)
		return err
	case palette.OpRemove:
		return c.RemoveWindow(choice.ID)
	default:
		return fmt.Errorf("unknown pick operation %s", choice.Op)
	}
}
