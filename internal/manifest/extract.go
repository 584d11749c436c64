// Package manifest finds replace directives in go.mod text.
//
// Scanning is line-based and tolerant: there is no tokenizer, the keyword and
// arrow are matched positionally, and malformed input yields fewer directives
// rather than an error.
package manifest

import (
	"iter"
	"strings"
)

const (
	// Keyword opens a replace directive, single-line or block.
	Keyword = "replace"
	// Arrow separates the replaced module from its target.
	Arrow = "=>"
	// Comment starts a line comment.
	Comment = "//"

	blockOpen  = "("
	blockClose = ")"
)

// State is the extractor's position relative to a replace block.
type State int

const (
	// Outside is the initial state: not inside a replace ( ... ) block.
	Outside State = iota
	// Inside means a block opener was seen and no closer yet.
	Inside
)

func (s State) String() string {
	switch s {
	case Outside:
		return "outside"
	case Inside:
		return "inside"
	default:
		return "unknown"
	}
}

// Directive is one replace entry as it appeared in the manifest.
type Directive struct {
	Line int    // 1-based
	Text string // raw line, untrimmed
}

// Scanner is the two-state machine behind Extract. The zero value is ready
// to use and starts Outside.
type Scanner struct {
	state State
	line  int
}

// State reports the current state. Inside after the last line means the
// final block was never closed.
func (s *Scanner) State() State { return s.state }

// Feed consumes the next line and returns the directive it carries, if any.
func (s *Scanner) Feed(raw string) (Directive, bool) {
	s.line++
	trimmed := strings.TrimSpace(raw)

	switch s.state {
	case Inside:
		if trimmed == blockClose {
			s.state = Outside
			return Directive{}, false
		}
		if strings.Contains(trimmed, Arrow) {
			return Directive{Line: s.line, Text: raw}, true
		}
		return Directive{}, false

	default:
		if opensBlock(trimmed) {
			s.state = Inside
			return Directive{}, false
		}
		if isSingleLine(trimmed) {
			return Directive{Line: s.line, Text: raw}, true
		}
		return Directive{}, false
	}
}

// Extract yields every replace directive in lines, in order.
func Extract(lines []string) iter.Seq[Directive] {
	return func(yield func(Directive) bool) {
		var s Scanner
		for _, line := range lines {
			d, ok := s.Feed(line)
			if !ok {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// ExtractAll collects Extract into a slice.
func ExtractAll(lines []string) []Directive {
	var out []Directive
	for d := range Extract(lines) {
		out = append(out, d)
	}
	return out
}

// opensBlock matches "replace (" and "replace(", with an optional trailing
// comment after the parenthesis.
func opensBlock(trimmed string) bool {
	rest, ok := strings.CutPrefix(trimmed, Keyword)
	if !ok {
		return false
	}
	rest = strings.TrimLeft(rest, " \t")
	rest, ok = strings.CutPrefix(rest, blockOpen)
	if !ok {
		return false
	}
	rest = strings.TrimSpace(rest)
	return rest == "" || strings.HasPrefix(rest, Comment)
}

// isSingleLine matches "replace <tokens...> => ...". The keyword must be a
// whole token, and some non-keyword text must come between it and the arrow.
func isSingleLine(trimmed string) bool {
	fields := strings.Fields(trimmed)
	if len(fields) < 2 || fields[0] != Keyword || fields[1] == Keyword {
		return false
	}
	rest := strings.TrimSpace(trimmed[len(Keyword):])
	return strings.Index(rest, Arrow) > 0
}
