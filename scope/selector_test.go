package scope_test

import (
	"errors"
	"testing"

	"cssscope/scope"
)

const class = ".w"

func TestSelector(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		want     string
	}{
		{"element", "a", ".w a"},
		{"class with spaces", "  .card  ", ".w .card"},
		{"universal", "*", ".w *"},
		{"html", "html", ".w"},
		{"html with class", "html.dark", ".w.dark"},
		{"html with pseudo class", "html:hover", ".w:hover"},
		{"html descendant", "html body", ".w body"},
		{"body", "body", ".w"},
		{"body with class", "body.x", ".w.x"},
		{"body child", "body > main", ".w > main"},
		{"element named like html", "htmlx", ".w htmlx"},
		{"element named like body", "bodyguard .x", ".w bodyguard .x"},
		{"already scoped", ".w .a", ".w .a"},
		{"scope itself", ".w", ".w"},
		{"at-rule", "@media screen", "@media screen"},
		{"list", "a, b", ".w a, .w b"},
		{"list without spaces", "a,b", ".w a, .w b"},
		{"list with empty parts", "a,b,,c,", ".w a, .w b, .w c"},
		{"list with root elements", "html, body", ".w, .w"},
		{"multiline list", ".a,\n.b:hover", ".w .a, .w .b:hover"},
		{"legacy split inside pseudo class", ":not(.a, .b)", ".w :not(.a, .w .b)"},
		{"attribute", `input[type="text"]`, `.w input[type="text"]`},
		{"empty", "", ""},
		{"blank", " \t\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scope.Selector(tt.selector, class); got != tt.want {
				t.Errorf("Selector(%q) = %q, want %q", tt.selector, got, tt.want)
			}
		})
	}
}

func TestSelector_Nested(t *testing.T) {
	s := scope.New(class, scope.WithCommaSplit(scope.CommaSplitNested))

	tests := []struct {
		selector string
		want     string
	}{
		{":not(.a, .b)", ".w :not(.a, .b)"},
		{"a:is(.x, .y), b", ".w a:is(.x, .y), .w b"},
		{"a:not(:is(.x, .y), .z), html.dark", ".w a:not(:is(.x, .y), .z), .w.dark"},
		{"a)), b", ".w a)), .w b"},
		{"a, b", ".w a, .w b"},
	}

	for _, tt := range tests {
		if got := s.ScopeSelector(tt.selector); got != tt.want {
			t.Errorf("ScopeSelector(%q) = %q, want %q", tt.selector, got, tt.want)
		}
	}
}

func TestSelector_Idempotent(t *testing.T) {
	selectors := []string{
		"a", ".card", "*", "html", "html.dark", "html:hover", "body", "body > main",
		"a, b", "html, body, .x", "ul li + li", "#id.x", "a::before", "",
	}
	for _, sel := range selectors {
		once := scope.Selector(sel, class)
		if twice := scope.Selector(once, class); twice != once {
			t.Errorf("Selector not idempotent for %q: %q then %q", sel, once, twice)
		}
	}
}

func TestSelector_ListIsPerPart(t *testing.T) {
	pairs := [][2]string{
		{"a", "b"},
		{"html", ".x"},
		{"body > main", "li:first-child"},
	}
	for _, p := range pairs {
		got := scope.Selector(p[0]+", "+p[1], class)
		want := scope.Selector(p[0], class) + ", " + scope.Selector(p[1], class)
		if got != want {
			t.Errorf("Selector(%q, %q) = %q, want %q", p[0], p[1], got, want)
		}
	}
}

func TestParseCommaSplit(t *testing.T) {
	for _, split := range []scope.CommaSplit{scope.CommaSplitLegacy, scope.CommaSplitNested} {
		got, err := scope.ParseCommaSplit(split.String())
		if err != nil {
			t.Fatalf("ParseCommaSplit(%q) error = %v", split, err)
		}
		if got != split {
			t.Errorf("ParseCommaSplit(%q) = %v, want %v", split, got, split)
		}
	}

	if _, err := scope.ParseCommaSplit("smart"); !errors.Is(err, scope.ErrInvalidCommaSplit) {
		t.Errorf("ParseCommaSplit(smart) error = %v, want ErrInvalidCommaSplit", err)
	}
	if scope.CommaSplit(7).IsValid() {
		t.Error("CommaSplit(7) reported as valid")
	}
	if s := scope.CommaSplit(7).String(); s != "CommaSplit(7)" {
		t.Errorf("String() = %q", s)
	}
}

func TestCommaSplit_Text(t *testing.T) {
	var split scope.CommaSplit
	if err := split.UnmarshalText([]byte("nested")); err != nil {
		t.Fatalf("UnmarshalText(nested) error = %v", err)
	}
	if split != scope.CommaSplitNested {
		t.Errorf("UnmarshalText(nested) = %v", split)
	}
	text, err := split.MarshalText()
	if err != nil || string(text) != "nested" {
		t.Errorf("MarshalText() = %q, %v", text, err)
	}
	if err := split.UnmarshalText([]byte("smart")); err == nil {
		t.Error("expected error for unknown mode")
	}
	if split != scope.CommaSplitNested {
		t.Errorf("failed UnmarshalText changed value to %v", split)
	}
}
