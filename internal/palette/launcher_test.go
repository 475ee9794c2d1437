package palette

import (
	"strings"
	"testing"
)

func TestRofiFormatItem_UsesSingleNullSeparator(t *testing.T) {
	l, _ := newLauncher("rofi")

	out := l.formatItem(Item{
		Label:    "Header",
		IsHeader: true,
		Icon:     "folder",
		Meta:     "meta",
		IsActive: true,
	})

	if got := strings.Count(out, "\x00"); got != 1 {
		t.Fatalf("expected exactly 1 NUL separator, got %d (%q)", got, out)
	}
	if !strings.Contains(out, "\x00nonselectable\x1ftrue") {
		t.Fatalf("expected nonselectable property, got %q", out)
	}
	if !strings.Contains(out, "icon\x1ffolder") || !strings.Contains(out, "meta\x1fmeta") {
		t.Fatalf("expected icon/meta attributes, got %q", out)
	}
	if !strings.Contains(out, "<b>Header</b>") {
		t.Fatalf("expected bold markup for header, got %q", out)
	}
}

func TestRofiFormatItem_EscapesMarkup(t *testing.T) {
	l, _ := newLauncher("rofi")

	out := l.formatItem(Item{Label: "a <b> & c"})
	if out != "a &lt;b&gt; &amp; c" {
		t.Fatalf("expected escaped label without properties, got %q", out)
	}
}

func TestDmenuFormatItem_PlainText(t *testing.T) {
	l, _ := newLauncher("dmenu")

	out := l.formatItem(Item{Label: "line\nbreak", Icon: "x", IsActive: true})
	if out != "line break" {
		t.Fatalf("expected plain sanitized label, got %q", out)
	}
}

func TestRofiBuildArgs(t *testing.T) {
	l, _ := newLauncher("rofi")

	_, selected := l.formatInput([]Item{
		{Label: "Header", IsHeader: true},
		{Label: "a"},
		{Label: "b", IsActive: true},
	})
	if selected != 2 {
		t.Fatalf("expected active row preselected, got %d", selected)
	}
	args := l.buildArgs("prompt", "message", selected)

	for _, pair := range [][2]string{
		{"-format", "i"},
		{"-p", "prompt"},
		{"-selected-row", "2"},
		{"-kb-custom-2", "Alt+d"},
		{"-mesg", "message"},
	} {
		if !containsArgs(args, pair[0], pair[1]) {
			t.Fatalf("expected %s %s in args, got %v", pair[0], pair[1], args)
		}
	}
	if !containsArg(args, "-no-custom") {
		t.Fatalf("expected -no-custom in args, got %v", args)
	}
}

func TestBuildArgsPerLauncher(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"fuzzel", "--index"},
		{"wofi", "--allow-markup"},
		{"dmenu", "-i"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, ok := newLauncher(tt.name)
			if !ok {
				t.Fatalf("newLauncher(%q) not found", tt.name)
			}
			args := l.buildArgs("pipgrid", "ignored", 0)
			if !containsArg(args, tt.want) {
				t.Fatalf("expected %s in args, got %v", tt.want, args)
			}
			if containsArg(args, "-mesg") {
				t.Fatalf("message bar is rofi only, got %v", args)
			}
		})
	}
}

func TestParseSelection(t *testing.T) {
	rows := []Item{
		{Label: "a", Action: "a"},
		{Label: "b", Action: "b"},
	}

	rofi, _ := newLauncher("rofi")
	got, err := rofi.parseSelection("1", rows)
	if err != nil || got.Action != "b" {
		t.Fatalf("rofi parseSelection(1) = %+v, %v", got, err)
	}
	if _, err := rofi.parseSelection("7", rows); err == nil {
		t.Fatalf("expected out of range error")
	}

	dmenu, _ := newLauncher("dmenu")
	got, err = dmenu.parseSelection("a", rows)
	if err != nil || got.Action != "a" {
		t.Fatalf("dmenu parseSelection(a) = %+v, %v", got, err)
	}
	if _, err := dmenu.parseSelection("zzz", rows); err == nil {
		t.Fatalf("expected unknown selection error")
	}
}

func TestFormatInput_DisambiguatesDuplicateLabels(t *testing.T) {
	l, _ := newLauncher("dmenu")
	rows := []Item{
		{Label: "Dup", Action: "a"},
		{Label: "Dup", Action: "b"},
	}

	_, _ = l.formatInput(rows)
	if rows[0].Label != "Dup" {
		t.Fatalf("expected first label unchanged, got %q", rows[0].Label)
	}
	if rows[1].Label != "Dup (2)" {
		t.Fatalf("expected second label disambiguated, got %q", rows[1].Label)
	}
}

func TestFormatInput_IndexBackendsKeepDuplicateLabels(t *testing.T) {
	l, _ := newLauncher("fuzzel")
	rows := []Item{
		{Label: "Dup", Action: "a"},
		{Label: "Dup", Action: "b"},
	}

	_, _ = l.formatInput(rows)
	if rows[0].Label != "Dup" || rows[1].Label != "Dup" {
		t.Fatalf("expected labels unchanged for index backend, got %#v", rows)
	}
}

func TestNewBackendUnknownName(t *testing.T) {
	if _, err := NewBackend("zenity"); err == nil || !strings.Contains(err.Error(), "unknown palette backend") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func containsArgs(args []string, a string, b string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == a && args[i+1] == b {
			return true
		}
	}
	return false
}
