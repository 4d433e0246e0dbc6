package scope

import (
	"strings"
)

//go:generate go tool go-enum --marshal

// CommaSplit selects how selector lists are broken into individual selectors.
// Legacy splits on every comma, including commas inside pseudo-class arguments
// such as ":not(.a, .b)", existing stylesheets were scoped this way, so it
// stays the default. Nested splits only on commas outside of parentheses.
// ENUM(legacy, nested)
type CommaSplit int

// Selector confines a single selector or selector list under scopeClass using
// legacy comma splitting.
func Selector(selector, scopeClass string) string {
	return scopeSelector(selector, scopeClass, CommaSplitLegacy)
}

func scopeSelector(selector, scopeClass string, split CommaSplit) string {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return selector
	}

	// at-rule preludes are not selectors
	if strings.HasPrefix(selector, "@") {
		return selector
	}

	if parts := splitList(selector, split); len(parts) > 1 {
		scoped := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			scoped = append(scoped, scopeSelector(part, scopeClass, split))
		}
		return strings.Join(scoped, ", ")
	}

	// document root elements are replaced by the scope itself
	if rest, ok := cutRootElement(selector, "html"); ok {
		return scopeClass + rest
	}
	if rest, ok := cutRootElement(selector, "body"); ok {
		return scopeClass + rest
	}

	if strings.HasPrefix(selector, scopeClass) {
		return selector
	}
	return scopeClass + " " + selector
}

// cutRootElement reports whether selector targets element name and returns
// whatever follows the element name.
func cutRootElement(selector, name string) (string, bool) {
	rest, found := strings.CutPrefix(selector, name)
	if !found {
		return "", false
	}
	if rest == "" {
		return rest, true
	}
	switch rest[0] {
	case ' ', ':', '.':
		return rest, true
	}
	return "", false
}

func splitList(selector string, split CommaSplit) []string {
	if split != CommaSplitNested {
		return strings.Split(selector, ",")
	}

	var (
		parts  []string
		parens int
		prev   int
	)
	for i := 0; i < len(selector); i++ {
		switch selector[i] {
		case '(':
			parens++
		case ')':
			if parens > 0 {
				parens--
			}
		case ',':
			if parens == 0 {
				parts = append(parts, selector[prev:i])
				prev = i + 1
			}
		}
	}
	return append(parts, selector[prev:])
}
