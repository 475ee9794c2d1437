package palette

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const windowActionPrefix = "window:"

// Candidate is a window offered by the picker.
type Candidate struct {
	ID        uint32
	PID       int
	AppID     string
	Title     string
	Monitored bool
}

// Op is what the user asked to do with the picked window.
type Op int

const (
	OpAdd Op = iota
	OpAddExpand
	OpExpand
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpAddExpand:
		return "add+expand"
	case OpExpand:
		return "expand"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Choice is the picker result.
type Choice struct {
	ID uint32
	Op Op
}

// BuildItems lists windows not yet on the grid first, then the monitored
// ones, each group under a header and sorted by title.
func BuildItems(candidates []Candidate) []Item {
	var available, monitored []Candidate
	for _, c := range candidates {
		if c.Monitored {
			monitored = append(monitored, c)
		} else {
			available = append(available, c)
		}
	}

	items := make([]Item, 0, len(candidates)+2)
	add := func(header string, group []Candidate) {
		if len(group) == 0 {
			return
		}
		sort.SliceStable(group, func(i, j int) bool {
			return strings.ToLower(group[i].Title) < strings.ToLower(group[j].Title)
		})
		items = append(items, Item{Label: fmt.Sprintf("%s (%d)", header, len(group)), IsHeader: true})
		for _, c := range group {
			items = append(items, Item{
				Label:    candidateLabel(c),
				Action:   windowActionPrefix + strconv.FormatUint(uint64(c.ID), 10),
				Icon:     strings.ToLower(c.AppID),
				Meta:     fmt.Sprintf("%s pid:%d", c.AppID, c.PID),
				IsActive: c.Monitored,
			})
		}
	}
	add("Available", available)
	add("On grid", monitored)
	return items
}

func candidateLabel(c Candidate) string {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		title = "(untitled)"
	}
	if c.AppID == "" {
		return fmt.Sprintf("%s  [0x%x]", title, c.ID)
	}
	return fmt.Sprintf("%s  [%s · 0x%x]", title, c.AppID, c.ID)
}

// ParseAction extracts the window id from an item action.
func ParseAction(action string) (uint32, error) {
	raw, ok := strings.CutPrefix(action, windowActionPrefix)
	if !ok {
		return 0, fmt.Errorf("palette: not a window action %q", action)
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("palette: bad window id in %q: %w", action, err)
	}
	return uint32(id), nil
}

// Pick shows candidates and maps the selection and exit code to a Choice.
// Enter adds an available window or expands a monitored one; Alt+Return
// adds and expands; Alt+d removes a monitored window.
func Pick(backend Backend, candidates []Candidate) (Choice, error) {
	if len(candidates) == 0 {
		return Choice{}, fmt.Errorf("palette: no windows to pick from")
	}
	monitored := make(map[uint32]bool, len(candidates))
	for _, c := range candidates {
		monitored[c.ID] = c.Monitored
	}

	message := ""
	if backend.Capabilities().CustomKeys {
		message = "Enter: add / expand   Alt+Return: add and expand   Alt+d: remove"
	}
	items := BuildItems(candidates)

	for {
		res, err := backend.Show("pipgrid", items, message)
		if err != nil {
			return Choice{}, err
		}
		// Launchers without non-selectable rows can return a header.
		if res.Item.IsHeader {
			continue
		}
		id, err := ParseAction(res.Item.Action)
		if err != nil {
			return Choice{}, err
		}

		onGrid := monitored[id]
		switch res.ExitCode {
		case ExitCustom2:
			if !onGrid {
				return Choice{}, ErrCancelled
			}
			return Choice{ID: id, Op: OpRemove}, nil
		case ExitCustom1:
			if onGrid {
				return Choice{ID: id, Op: OpExpand}, nil
			}
			return Choice{ID: id, Op: OpAddExpand}, nil
		default:
			if onGrid {
				return Choice{ID: id, Op: OpExpand}, nil
			}
			return Choice{ID: id, Op: OpAdd}, nil
		}
	}
}
