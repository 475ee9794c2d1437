package palette

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"os/exec"
	"strconv"
	"strings"
)

// Exit codes for rofi kb-custom keybindings
const (
	ExitNormal  = 0
	ExitCustom1 = 10 // Alt+Return
	ExitCustom2 = 11 // Alt+d
)

type launcherKind int

const (
	kindRofi launcherKind = iota
	kindFuzzel
	kindWofi
	kindDmenu
)

// launcher runs one of the dmenu-compatible programs over stdin/stdout.
type launcher struct {
	command string
	kind    launcherKind
	caps    Capabilities
}

func newLauncher(name string) (*launcher, bool) {
	switch name {
	case "rofi":
		return &launcher{command: "rofi", kind: kindRofi, caps: Capabilities{
			Icons:         true,
			Markup:        true,
			NonSelectable: true,
			CustomKeys:    true,
			IndexOutput:   true,
			MessageBar:    true,
		}}, true
	case "fuzzel":
		return &launcher{command: "fuzzel", kind: kindFuzzel, caps: Capabilities{
			Icons:       true,
			IndexOutput: true,
		}}, true
	case "wofi":
		return &launcher{command: "wofi", kind: kindWofi, caps: Capabilities{
			Icons:  true,
			Markup: true,
		}}, true
	case "dmenu":
		return &launcher{command: "dmenu", kind: kindDmenu}, true
	default:
		return nil, false
	}
}

func (l *launcher) Capabilities() Capabilities {
	return l.caps
}

func (l *launcher) Show(prompt string, items []Item, message string) (SelectResult, error) {
	if len(items) == 0 {
		return SelectResult{}, fmt.Errorf("palette: no items to show")
	}

	rows := make([]Item, len(items))
	copy(rows, items)
	input, selected := l.formatInput(rows)

	cmd := exec.Command(l.command, l.buildArgs(prompt, message, selected)...)
	cmd.Stdin = strings.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	selection := strings.TrimSpace(string(out))

	exitCode := ExitNormal
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return SelectResult{}, fmt.Errorf("%s failed: %w", l.command, err)
		}
		exitCode = exitErr.ExitCode()
		switch {
		case selection == "" && (exitCode == 1 || exitCode == 130):
			return SelectResult{}, ErrCancelled
		case exitCode == ExitCustom1 || exitCode == ExitCustom2:
		default:
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return SelectResult{}, fmt.Errorf("%s failed: %s", l.command, msg)
			}
			return SelectResult{}, fmt.Errorf("%s failed: %w", l.command, err)
		}
	}
	if selection == "" {
		return SelectResult{}, ErrCancelled
	}

	item, err := l.parseSelection(selection, rows)
	if err != nil {
		return SelectResult{}, err
	}
	return SelectResult{Item: item, ExitCode: exitCode}, nil
}

// buildArgs returns the command line for prompt. selected is the row to
// preselect, or -1.
func (l *launcher) buildArgs(prompt, message string, selected int) []string {
	var args []string

	switch l.kind {
	case kindRofi:
		args = []string{"-dmenu", "-i", "-format", "i", "-no-custom", "-markup-rows", "-show-icons"}
		if prompt != "" {
			args = append(args, "-p", prompt)
		}
		if selected >= 0 {
			args = append(args, "-selected-row", strconv.Itoa(selected))
		}
		args = append(args, "-kb-custom-1", "Alt+Return", "-kb-custom-2", "Alt+d")
		if message != "" {
			args = append(args, "-mesg", message)
		}

	case kindFuzzel:
		args = []string{"--dmenu", "--index"}
		if prompt != "" {
			args = append(args, "--prompt", prompt)
		}

	case kindWofi:
		args = []string{"--dmenu", "--allow-markup", "--allow-images"}
		if prompt != "" {
			args = append(args, "--prompt", prompt)
		}

	case kindDmenu:
		args = []string{"-i"}
		if prompt != "" {
			args = append(args, "-p", prompt)
		}
	}

	return args
}

// formatInput renders rows, one per line, and picks the first active
// selectable row (or the first selectable row) to preselect. Launchers
// that return the row text get duplicate labels suffixed so the reply
// stays unambiguous.
func (l *launcher) formatInput(rows []Item) (string, int) {
	if !l.caps.IndexOutput {
		seen := make(map[string]int)
		for i := range rows {
			if rows[i].IsHeader {
				continue
			}
			key := sanitizeLabel(rows[i].Label)
			if n := seen[key]; n > 0 {
				rows[i].Label = fmt.Sprintf("%s (%d)", key, n+1)
			}
			seen[key]++
		}
	}

	selected, firstActive := -1, -1
	lines := make([]string, 0, len(rows))
	for i, row := range rows {
		lines = append(lines, l.formatItem(row))
		if row.IsHeader {
			continue
		}
		if selected == -1 {
			selected = i
		}
		if row.IsActive && firstActive == -1 {
			firstActive = i
		}
	}
	if firstActive != -1 {
		selected = firstActive
	}
	return strings.Join(lines, "\n"), selected
}

func (l *launcher) formatItem(row Item) string {
	display := sanitizeLabel(row.Label)
	if l.caps.Markup {
		display = html.EscapeString(display)
		if row.IsHeader {
			display = "<b>" + display + "</b>"
		}
	}
	if l.kind != kindRofi {
		return display
	}

	// rofi row properties: one NUL, then key\x1fvalue pairs joined by \x1f.
	var attrs []string
	if row.IsHeader {
		attrs = append(attrs, "nonselectable", "true")
	}
	if row.Icon != "" {
		attrs = append(attrs, "icon", sanitizeRofiField(row.Icon))
	}
	if row.Meta != "" {
		attrs = append(attrs, "meta", sanitizeRofiField(row.Meta))
	}
	if row.IsActive {
		attrs = append(attrs, "active", "true")
	}
	if len(attrs) == 0 {
		return display
	}
	return display + "\x00" + strings.Join(attrs, "\x1f")
}

func (l *launcher) parseSelection(selection string, rows []Item) (Item, error) {
	if l.caps.IndexOutput {
		if idx, err := strconv.Atoi(selection); err == nil {
			if idx < 0 || idx >= len(rows) {
				return Item{}, fmt.Errorf("palette: index %d out of range", idx)
			}
			return rows[idx], nil
		}
	}
	for _, row := range rows {
		if sanitizeLabel(row.Label) == selection {
			return row, nil
		}
	}
	return Item{}, fmt.Errorf("palette: unknown selection %q", selection)
}

func sanitizeLabel(label string) string {
	label = strings.ReplaceAll(label, "\r", " ")
	label = strings.ReplaceAll(label, "\n", " ")
	return strings.TrimSpace(label)
}

func sanitizeRofiField(value string) string {
	value = strings.NewReplacer("\x00", " ", "\x1f", " ", "\r", " ", "\n", " ").Replace(value)
	return strings.TrimSpace(value)
}
