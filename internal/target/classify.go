// Package target decides whether a replace directive points at the local
// filesystem. Classification is purely syntactic: nothing is stat'ed or
// fetched.
package target

import (
	"strings"

	"replaceguard/internal/manifest"
)

// Shape names the path form a target was recognized as.
type Shape string

const (
	ShapeNone          Shape = ""
	ShapeRelative      Shape = "relative"
	ShapePOSIXAbsolute Shape = "posix-absolute"
	ShapeHome          Shape = "home"
	ShapeWindowsDrive  Shape = "windows-drive"
	ShapeCustom        Shape = "custom"
)

// Result is the outcome of classifying one directive.
type Result struct {
	Local  bool
	Target string // right-hand side with comment and surrounding space removed
	Shape  Shape
}

// Malformed reports a directive whose arrow has nothing after it.
func (r Result) Malformed() bool { return r.Target == "" }

// Rule is one entry of the ordered local-path table.
type Rule struct {
	Shape Shape
	Match func(target string) bool
}

// Classifier evaluates targets against its rules top to bottom; the first
// matching rule wins.
type Classifier struct {
	rules []Rule
}

var defaultRules = []Rule{
	{Shape: ShapeRelative, Match: hasAnyPrefix("./", "../", `.\`, `..\`)},
	{Shape: ShapePOSIXAbsolute, Match: hasAnyPrefix("/")},
	{Shape: ShapeHome, Match: hasAnyPrefix("~/")},
	{Shape: ShapeWindowsDrive, Match: isDriveAbsolute},
}

var defaultClassifier = NewClassifier()

// NewClassifier returns a classifier with the built-in rules followed by one
// ShapeCustom rule per non-empty extra prefix.
func NewClassifier(extraPrefixes ...string) *Classifier {
	rules := make([]Rule, len(defaultRules), len(defaultRules)+len(extraPrefixes))
	copy(rules, defaultRules)
	for _, p := range extraPrefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		rules = append(rules, Rule{Shape: ShapeCustom, Match: hasAnyPrefix(p)})
	}
	return &Classifier{rules: rules}
}

// Rules returns a copy of the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify classifies a raw directive line with the default rules.
func Classify(text string) Result {
	return defaultClassifier.Classify(text)
}

// Classify extracts the right-hand side of a directive line and matches it
// against the rule table.
func (c *Classifier) Classify(text string) Result {
	_, rhs, ok := strings.Cut(text, manifest.Arrow)
	if !ok {
		return Result{}
	}
	rhs, _, _ = strings.Cut(rhs, manifest.Comment)
	return c.ClassifyTarget(strings.TrimSpace(rhs))
}

// ClassifyTarget matches an already-normalized target.
func (c *Classifier) ClassifyTarget(target string) Result {
	res := Result{Target: target}
	if target == "" {
		return res
	}
	for _, r := range c.rules {
		if r.Match(target) {
			res.Local = true
			res.Shape = r.Shape
			return res
		}
	}
	return res
}

func hasAnyPrefix(prefixes ...string) func(string) bool {
	return func(s string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(s, p) {
				return true
			}
		}
		return false
	}
}

// isDriveAbsolute matches a leading `X:\` with X an ASCII letter.
func isDriveAbsolute(s string) bool {
	if len(s) < 3 {
		return false
	}
	c := s[0]
	isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return isLetter && s[1] == ':' && s[2] == '\\'
}
