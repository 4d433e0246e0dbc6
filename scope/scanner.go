// Package scope rewrites stylesheets so that every selector is confined under
// a single scope class.
//
// Rewriting is done by a single forward pass over raw stylesheet text. No CSS
// grammar is involved: comments, block nesting and at-rule context are
// tracked, selector text found in front of a rule body is rewritten, and
// everything else (declarations, comments, at-rule preludes) is copied as is.
// Comments found inside selector text are moved in front of the scoped
// selector.
//
// Known limitations: braces inside string literals are treated as structural,
// and in legacy comma mode selector lists are split on every comma, including
// commas inside pseudo-class arguments.
package scope

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// mode is the lexical state of the scanner.
type mode int

const (
	modeNormal mode = iota
	modeComment
	modeAtRulePrelude
)

// frame is an open block on the scanner stack.
type frame int

const (
	// frameRule is a declaration block, copied verbatim.
	frameRule frame = iota
	// frameGroup is a conditional group at-rule body, its nested rules are
	// scoped.
	frameGroup
	// frameOpaque is an at-rule body copied verbatim (@font-face, @keyframes
	// and alike).
	frameOpaque
)

// at-rules whose bodies contain ordinary rules. Bodies of any other at-rule
// (@keyframes, @font-face, @page, unknown ones) are not scoped even when they
// look like rules: "from" or "to" under a scope class is not valid CSS.
var groupAtRules = map[string]bool{
	"media":          true,
	"supports":       true,
	"container":      true,
	"layer":          true,
	"document":       true,
	"-moz-document":  true,
	"scope":          true,
	"starting-style": true,
}

// IsGroupAtRule reports whether body of at-rule name (without '@', lower
// case) holds ordinary rules which have to be scoped.
func IsGroupAtRule(name string) bool {
	return groupAtRules[name]
}

// Stats describes what was done to a stylesheet.
type Stats struct {
	InputBytes       int
	OutputBytes      int
	Rules            int
	GroupAtRules     int
	OpaqueAtRules    int
	StatementAtRules int
	Comments         int
}

// Option configures Scoper.
type Option func(*Scoper)

// WithCommaSplit selects selector list splitting mode.
func WithCommaSplit(split CommaSplit) Option {
	return func(s *Scoper) {
		s.split = split
	}
}

// WithLogger sets logger for debug output.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scoper) {
		if log != nil {
			s.log = log
		}
	}
}

// Scoper rewrites stylesheets under a single scope class. It keeps no state
// between calls and may be used concurrently.
type Scoper struct {
	class string
	split CommaSplit
	log   *zap.Logger
}

// New returns Scoper for scopeClass (usually a class selector including
// leading dot).
func New(scopeClass string, opts ...Option) *Scoper {
	s := &Scoper{
		class: scopeClass,
		split: CommaSplitLegacy,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("scope")
	return s
}

// Class returns scope class.
func (s *Scoper) Class() string {
	return s.class
}

// ScopeSelector rewrites single selector or selector list.
func (s *Scoper) ScopeSelector(selector string) string {
	return scopeSelector(selector, s.class, s.split)
}

// Scope rewrites complete stylesheet. Malformed input is not detected, result
// is best effort.
func (s *Scoper) Scope(input string) (string, Stats) {
	sc := &scanner{
		Scoper: s,
		src:    input,
	}
	sc.out.Grow(len(input) + len(input)/4)
	sc.run()

	sc.stats.InputBytes = len(input)
	sc.stats.OutputBytes = sc.out.Len()
	s.log.Debug("Stylesheet scoped",
		zap.String("class", s.class),
		zap.Int("original", sc.stats.InputBytes),
		zap.Int("scoped", sc.stats.OutputBytes),
		zap.Int("rules", sc.stats.Rules),
		zap.Int("comments", sc.stats.Comments))
	return sc.out.String(), sc.stats
}

// Stylesheet confines every selector of input under scopeClass.
func Stylesheet(input, scopeClass string) string {
	out, _ := New(scopeClass).Scope(input)
	return out
}

type scanner struct {
	*Scoper

	src   string
	out   strings.Builder
	sel   strings.Builder
	stats Stats

	mode    mode
	resume  mode             // mode to return to when comment ends
	comment *strings.Builder // comment text goes here, output or pending selector
	frames  []frame
	prelude int // offset of '@' starting current prelude
}

func (sc *scanner) peek(i int) byte {
	if i+1 < len(sc.src) {
		return sc.src[i+1]
	}
	return 0
}

// selectorContext reports whether characters at this point belong to a
// selector: at top level or directly inside a group at-rule.
func (sc *scanner) selectorContext() bool {
	return len(sc.frames) == 0 || sc.frames[len(sc.frames)-1] == frameGroup
}

func (sc *scanner) run() {
	for i := 0; i < len(sc.src); i++ {
		c := sc.src[i]

		if sc.mode == modeComment {
			sc.comment.WriteByte(c)
			if c == '*' && sc.peek(i) == '/' {
				sc.comment.WriteByte('/')
				i++
				sc.mode = sc.resume
			}
			continue
		}

		if c == '/' && sc.peek(i) == '*' {
			// comment inside selector text stays with it until the rule body
			// is found
			sc.comment = &sc.sel
			if strings.TrimSpace(sc.sel.String()) == "" {
				sc.flushSelector()
				sc.comment = &sc.out
			}
			sc.comment.WriteString("/*")
			i++
			sc.resume, sc.mode = sc.mode, modeComment
			sc.stats.Comments++
			continue
		}

		if sc.mode == modeAtRulePrelude {
			sc.atRulePrelude(i, c)
			continue
		}

		if !sc.selectorContext() {
			sc.block(c)
			continue
		}

		switch c {
		case '@':
			sc.flushSelector()
			sc.mode = modeAtRulePrelude
			sc.prelude = i
			sc.out.WriteByte(c)
		case '{':
			sc.openRule()
		case '}':
			sc.flushSelector()
			sc.closeBlock()
		default:
			sc.sel.WriteByte(c)
		}
	}
	sc.flushSelector()
}

// atRulePrelude copies prelude verbatim until it is terminated by a body or
// by a semicolon.
func (sc *scanner) atRulePrelude(i int, c byte) {
	switch c {
	case '{':
		name := atRuleName(sc.src[sc.prelude:i])
		kind := frameOpaque
		if IsGroupAtRule(name) {
			kind = frameGroup
			sc.stats.GroupAtRules++
		} else {
			sc.stats.OpaqueAtRules++
		}
		sc.log.Debug("At-rule", zap.String("name", name), zap.Bool("scoped", kind == frameGroup))
		sc.frames = append(sc.frames, kind)
		sc.mode = modeNormal
		sc.out.WriteByte(c)
	case ';':
		sc.stats.StatementAtRules++
		sc.mode = modeNormal
		sc.out.WriteByte(c)
	case '}':
		// prelude without body, closes enclosing block
		sc.mode = modeNormal
		sc.closeBlock()
	default:
		sc.out.WriteByte(c)
	}
}

// block copies content of declaration blocks and opaque at-rules keeping
// track of nested braces.
func (sc *scanner) block(c byte) {
	switch c {
	case '{':
		sc.frames = append(sc.frames, sc.frames[len(sc.frames)-1])
	case '}':
		sc.frames = sc.frames[:len(sc.frames)-1]
	}
	sc.out.WriteByte(c)
}

// openRule scopes pending selector text. Comments found in it are moved in
// front of the scoped selector.
func (sc *scanner) openRule() {
	raw, comments := cutComments(sc.sel.String())
	sc.sel.Reset()

	if selector := strings.TrimSpace(raw); selector != "" {
		body := strings.TrimLeftFunc(raw, unicode.IsSpace)
		sc.out.WriteString(raw[:len(raw)-len(body)])
		for _, comment := range comments {
			sc.out.WriteString(comment)
			sc.out.WriteByte(' ')
		}
		sc.out.WriteString(scopeSelector(selector, sc.class, sc.split))
		sc.out.WriteString(body[len(strings.TrimRightFunc(body, unicode.IsSpace)):])
		sc.stats.Rules++
	} else {
		sc.out.WriteString(strings.Join(comments, ""))
		sc.out.WriteString(raw)
	}
	sc.out.WriteByte('{')
	sc.frames = append(sc.frames, frameRule)
}

func (sc *scanner) closeBlock() {
	if len(sc.frames) > 0 {
		sc.frames = sc.frames[:len(sc.frames)-1]
	}
	sc.out.WriteByte('}')
}

// flushSelector copies pending selector text as is.
func (sc *scanner) flushSelector() {
	if sc.sel.Len() == 0 {
		return
	}
	sc.out.WriteString(sc.sel.String())
	sc.sel.Reset()
}

// cutComments removes complete comments from selector text. Comments do not
// separate tokens, so nothing is left in their place.
func cutComments(text string) (string, []string) {
	var (
		comments []string
		rest     strings.Builder
	)
	for {
		start := strings.Index(text, "/*")
		if start < 0 {
			break
		}
		end := strings.Index(text[start+2:], "*/")
		if end < 0 {
			break
		}
		end += start + 4
		rest.WriteString(text[:start])
		comments = append(comments, text[start:end])
		text = text[end:]
	}
	if len(comments) == 0 {
		return text, nil
	}
	rest.WriteString(text)
	return rest.String(), comments
}

// atRuleName extracts lower case at-rule name from prelude starting with '@'.
func atRuleName(prelude string) string {
	name := strings.TrimPrefix(prelude, "@")
	end := strings.IndexFunc(name, func(r rune) bool {
		return !(r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	if end >= 0 {
		name = name[:end]
	}
	return strings.ToLower(name)
}
