// Package report renders scan verdicts for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"replaceguard/internal/scan"

	"github.com/charmbracelet/lipgloss"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: text, json)", s)
	}
}

// Remediation is printed under every local-override finding.
const Remediation = "hint: remove the replace directive or point it at a published module version before committing"

// Options controls rendering.
type Options struct {
	Format Format
	Color  bool
}

// Write renders v to w.
func Write(w io.Writer, v scan.Verdict, opts Options) error {
	switch opts.Format {
	case FormatJSON:
		return writeJSON(w, v)
	default:
		return writeText(w, v, opts.Color)
	}
}

func writeJSON(w io.Writer, v scan.Verdict) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	return nil
}

type styles struct {
	enabled  bool
	location lipgloss.Style
	errLabel lipgloss.Style
	hint     lipgloss.Style
	ok       lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	if !color {
		return styles{}
	}
	r := lipgloss.NewRenderer(w)
	return styles{
		enabled:  true,
		location: r.NewStyle().Bold(true),
		errLabel: r.NewStyle().Foreground(lipgloss.Color("9")),
		hint:     r.NewStyle().Foreground(lipgloss.Color("8")),
		ok:       r.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

// paint styles text when colour is on. Raw manifest text must not go through
// here: lipgloss rewrites tabs.
func (s styles) paint(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

func writeText(w io.Writer, v scan.Verdict, color bool) error {
	st := newStyles(w, color)
	var b strings.Builder

	for _, f := range v.Findings {
		switch f.Kind {
		case scan.KindLoadFailure:
			fmt.Fprintf(&b, "%s: %s\n", st.paint(st.location, f.Path), st.paint(st.errLabel, f.Reason))
		default:
			loc := fmt.Sprintf("%s:L%d", f.Path, f.Line)
			fmt.Fprintf(&b, "%s: %s: %s\n",
				st.paint(st.location, loc),
				st.paint(st.errLabel, "local override target not allowed"),
				f.Text)
			fmt.Fprintf(&b, "  %s\n", st.paint(st.hint, Remediation))
		}
	}

	b.WriteString(st.summary(v))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// Summary returns the closing line of a plain text report.
func Summary(v scan.Verdict) string {
	return styles{}.summary(v)
}

func (s styles) summary(v scan.Verdict) string {
	if v.Passed {
		return s.paint(s.ok, "OK: no local replace directives found")
	}
	local, failures := v.Counts()
	return s.paint(s.errLabel, fmt.Sprintf("FAIL: %d local replace %s, %d unreadable %s",
		local, plural(local, "directive", "directives"),
		failures, plural(failures, "manifest", "manifests")))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
