package css_test

import (
	"strings"
	"testing"

	"cssscope/css"
)

func TestOutline(t *testing.T) {
	input := `@import url("base.css");
.card { color: blue; --accent: red; }
@media print {
  .nav { display: none; }
}
`
	got := css.Outline([]byte(input))
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")

	want := []struct {
		indent int
		prefix string
	}{
		{0, "@import"},
		{0, `rule: ".card"`},
		{1, "color"},
		{1, "--accent"},
		{0, "@media"},
		{1, `rule: ".nav"`},
		{2, "display"},
	}
	if len(lines) != len(want) {
		t.Fatalf("Outline() has %d lines, want %d:\n%s", len(lines), len(want), got)
	}
	for i, w := range want {
		line := lines[i]
		trimmed := strings.TrimLeft(line, " ")
		if indent := (len(line) - len(trimmed)) / 2; indent != w.indent {
			t.Errorf("line %d %q: indent %d, want %d", i, line, indent, w.indent)
		}
		if !strings.HasPrefix(trimmed, w.prefix) {
			t.Errorf("line %d %q: want prefix %q", i, line, w.prefix)
		}
	}
}

func TestOutline_SelectorList(t *testing.T) {
	got := css.Outline([]byte(`.a, .b { }`))
	if !strings.Contains(got, `rule: ".a, .b"`) {
		t.Errorf("Outline() = %q", got)
	}
}

func TestOutline_Empty(t *testing.T) {
	if got := css.Outline(nil); got != "" {
		t.Errorf("Outline(nil) = %q, want empty", got)
	}
}
