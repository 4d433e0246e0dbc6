// Package css checks scoped stylesheets using real CSS grammar.
package css

import (
	"bytes"
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"cssscope/scope"
)

// Report is the result of stylesheet verification.
type Report struct {
	Selectors []string // every selector of every scoped rule, in order
	Unscoped  []string // selectors which do not start with the scope class
	AtRules   []string // at-rule names in order of appearance
	Warnings  []string
}

// Scoped reports whether every checked selector is under the scope.
func (r *Report) Scoped() bool {
	return len(r.Unscoped) == 0
}

// Verifier walks stylesheets with tdewolff CSS parser.
type Verifier struct {
	log *zap.Logger
}

// NewVerifier creates a new verifier.
func NewVerifier(log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{log: log.Named("css-verify")}
}

// Verify collects selectors of all style rules, including rules nested in
// group at-rules (@media, @supports...), and checks that they start with
// scopeClass. Bodies of other at-rules (@keyframes, @font-face...) are not
// checked. The optional source parameter identifies what's being verified
// (for debug logging).
func (v *Verifier) Verify(data []byte, scopeClass string, source ...string) *Report {
	rpt := &Report{}

	if len(source) > 0 && source[0] != "" {
		v.log.Debug("Verifying CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)

	// names of enclosing at-rules, empty string when at-rule body holds
	// ordinary rules
	var opaque []string

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				rpt.Warnings = append(rpt.Warnings, "parse error: "+err.Error())
				v.log.Debug("CSS parse error", zap.Error(err))
			}
			return rpt

		case css.AtRuleGrammar:
			rpt.AtRules = append(rpt.AtRules, string(data))

		case css.BeginAtRuleGrammar:
			rpt.AtRules = append(rpt.AtRules, string(data))
			name := strings.ToLower(strings.TrimPrefix(string(data), "@"))
			if scope.IsGroupAtRule(name) {
				name = ""
			}
			opaque = append(opaque, name)

		case css.EndAtRuleGrammar:
			if len(opaque) > 0 {
				opaque = opaque[:len(opaque)-1]
			}

		case css.BeginRulesetGrammar, css.QualifiedRuleGrammar:
			if enclosing := insideOpaque(opaque); enclosing != "" {
				v.log.Debug("Skipping rule inside at-rule", zap.String("at-rule", enclosing))
				continue
			}
			for _, sel := range splitSelectors(data, parser.Values()) {
				rpt.Selectors = append(rpt.Selectors, sel)
				if !strings.HasPrefix(sel, scopeClass) {
					rpt.Unscoped = append(rpt.Unscoped, sel)
					v.log.Debug("Selector is not scoped", zap.String("selector", sel))
				}
			}
		}
	}
}

func insideOpaque(names []string) string {
	for _, name := range names {
		if name != "" {
			return "@" + name
		}
	}
	return ""
}

// splitSelectors rebuilds selector list from tokens and splits it on commas
// outside of functional notation.
func splitSelectors(data []byte, values []css.Token) []string {
	var (
		selectors []string
		sb        strings.Builder
		depth     int
	)
	sb.Write(data)

	flush := func() {
		if s := strings.TrimSpace(sb.String()); s != "" {
			selectors = append(selectors, s)
		}
		sb.Reset()
	}

	for _, t := range values {
		switch t.TokenType {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			if depth > 0 {
				depth--
			}
		case css.CommaToken:
			if depth == 0 {
				flush()
				continue
			}
		}
		sb.Write(t.Data)
	}
	flush()
	return selectors
}
