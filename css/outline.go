package css

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

type treeWriter struct {
	w *strings.Builder
}

func newTreeWriter() *treeWriter {
	return &treeWriter{w: &strings.Builder{}}
}

func (tw treeWriter) String() string {
	return tw.w.String()
}

func (tw treeWriter) line(depth int, format string, args ...any) {
	for range depth {
		tw.w.WriteString("  ")
	}
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

func (tw treeWriter) text(depth int, label, value string) {
	if value == "" {
		tw.line(depth, "%s", label)
		return
	}
	tw.line(depth, "%s: %s", label, strconv.Quote(value))
}

// Outline renders structure of the stylesheet as indented tree: at-rules with
// their preludes, rules with selectors and property names of declarations.
// Used for debug reports.
func Outline(data []byte) string {
	tw := newTreeWriter()
	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)

	depth := 0
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				tw.text(depth, "error", err.Error())
			}
			return tw.String()

		case css.AtRuleGrammar:
			tw.text(depth, string(data), tokensString(parser.Values()))

		case css.BeginAtRuleGrammar:
			tw.text(depth, string(data), tokensString(parser.Values()))
			depth++

		case css.BeginRulesetGrammar:
			tw.text(depth, "rule", strings.Join(splitSelectors(data, parser.Values()), ", "))
			depth++

		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			if depth > 0 {
				depth--
			}

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			tw.line(depth, "%s", data)
		}
	}
}

func tokensString(values []css.Token) string {
	var sb strings.Builder
	for _, t := range values {
		sb.Write(t.Data)
	}
	return strings.TrimSpace(sb.String())
}
