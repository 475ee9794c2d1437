package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/1broseidon/pipgrid/internal/ipc"
)

// parseWindowID accepts decimal or 0x-prefixed hex window ids.
func parseWindowID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid window id %q", s)
	}
	return uint32(v), nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	all := fs.Bool("all", false, "Include windows already on the grid")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: pipgrid list [--all] [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List top-level windows that can be added to the grid.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	data, err := ipc.NewClient().ListCandidates()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	windows := make([]ipc.CandidateInfo, 0, len(data.Windows))
	for _, w := range data.Windows {
		if w.Monitored && !*all {
			continue
		}
		windows = append(windows, w)
	}
	if *jsonOut {
		return printJSON(windows)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPID\tAPP\tTITLE\tON GRID")
	for _, w := range windows {
		onGrid := ""
		if w.Monitored {
			onGrid = "yes"
		}
		fmt.Fprintf(tw, "0x%x\t%d\t%s\t%s\t%s\n", w.ID, w.PID, w.AppID, w.Title, onGrid)
	}
	tw.Flush()
	fmt.Printf("%s windows\n", humanize.Comma(int64(len(windows))))
	return 0
}

func runBoard(args []string) int {
	fs := flag.NewFlagSet("board", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: pipgrid board [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show the grid: cell, window, state, CPU and capture rate.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	board, err := ipc.NewClient().GetBoard()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(board)
	}

	flags := []string{fmt.Sprintf("%d columns", board.Columns), "focus " + board.Focus}
	if board.MovieMode {
		flags = append(flags, "movie")
	}
	if board.Paused {
		flags = append(flags, "paused")
	}
	if board.AutoMinimize {
		flags = append(flags, "auto-minimize")
	}
	fmt.Println(strings.Join(flags, ", "))

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CELL\tID\tSTATE\tCPU\tFPS\tFRAMES\tTITLE")
	for _, t := range board.Tiles {
		state := t.State
		if t.Expanded {
			state = "expanded"
		}
		fmt.Fprintf(tw, "%d,%d\t0x%x\t%s\t%s\t%.1f\t%s\t%s\n",
			t.Row, t.Col, t.ID, state, t.CPU, t.FPS, humanize.Comma(int64(t.Captures)), t.Title)
	}
	tw.Flush()
	for _, n := range board.Notices {
		fmt.Printf("! %s (%s)\n", n.Message, humanize.Time(n.At))
	}
	return 0
}

// windowCommand handles the shared shape of add/remove/click: one window id
// argument and a single IPC call.
func windowCommand(name, usage, summary string, args []string, fn func(*ipc.Client, uint32) (string, error)) int {
	if isHelpArg(args) {
		fmt.Fprintf(os.Stdout, "Usage: pipgrid %s %s\n\n%s\n", name, usage, summary)
		return 0
	}
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: pipgrid %s %s\n", name, usage)
		return 2
	}
	id, err := parseWindowID(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	out, err := fn(ipc.NewClient(), id)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if out != "" {
		fmt.Println(out)
	}
	return 0
}

func runAdd(args []string) int {
	return windowCommand("add", "<id>", "Add a window to the end of the grid.", args, func(c *ipc.Client, id uint32) (string, error) {
		w, err := c.AddWindow(id)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("added 0x%x %s", w.ID, w.Title), nil
	})
}

func runRemove(args []string) int {
	return windowCommand("remove", "<id>", "Remove a window from the grid.", args, func(c *ipc.Client, id uint32) (string, error) {
		return "", c.RemoveWindow(id)
	})
}

func runClick(args []string) int {
	return windowCommand("click", "<id>", "Expand a window, or collapse it when it is already expanded.", args, func(c *ipc.Client, id uint32) (string, error) {
		res, err := c.Click(id)
		if err != nil {
			return "", err
		}
		return "focus: " + res.Focus, nil
	})
}

func runMove(args []string) int {
	if isHelpArg(args) {
		fmt.Fprintln(os.Stdout, "Usage: pipgrid move <id> up|down")
		fmt.Fprintln(os.Stdout, "")
		fmt.Fprintln(os.Stdout, "Swap a window with its neighbour in grid order.")
		return 0
	}
	if len(args) != 2 || (args[1] != "up" && args[1] != "down") {
		fmt.Fprintln(os.Stderr, "Usage: pipgrid move <id> up|down")
		return 2
	}
	id, err := parseWindowID(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	moved, err := ipc.NewClient().Reorder(id, args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !moved {
		fmt.Println("already at the edge of the grid")
	}
	return 0
}

func runColumns(args []string) int {
	if isHelpArg(args) {
		fmt.Fprintln(os.Stdout, "Usage: pipgrid columns <3-5>")
		return 0
	}
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pipgrid columns <3-5>")
		return 2
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid column count %q\n", args[0])
		return 2
	}
	if err := ipc.NewClient().SetColumns(n); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runToggle(name, summary string, args []string, set func(*ipc.Client, bool) error) int {
	if isHelpArg(args) {
		fmt.Fprintf(os.Stdout, "Usage: pipgrid %s on|off\n\n%s\n", name, summary)
		return 0
	}
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: pipgrid %s on|off\n", name)
		return 2
	}
	on, err := parseOnOff(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := set(ipc.NewClient(), on); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runLogs(args []string) int {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	n := fs.Int("n", 50, "Number of recent lines")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: pipgrid logs [-n N]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show recent board events from the daemon.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	lines, err := ipc.NewClient().GetLogs(*n)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, l := range lines {
		fmt.Println(l)
	}
	return 0
}
