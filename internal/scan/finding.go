package scan

import "replaceguard/internal/target"

// Kind distinguishes policy violations from manifests that could not be read.
type Kind string

const (
	KindLocalOverride Kind = "local-override"
	KindLoadFailure   Kind = "load-failure"
)

const (
	ReasonLocalOverride = "local filesystem override target not allowed"
	ReasonLoadFailure   = "failed to load manifest"
)

// Finding is one violation anchored to a manifest and line. Line is zero for
// load failures.
type Finding struct {
	Path   string       `json:"path"`
	Line   int          `json:"line,omitempty"`
	Text   string       `json:"text,omitempty"`
	Reason string       `json:"reason"`
	Kind   Kind         `json:"kind"`
	Target string       `json:"target,omitempty"`
	Shape  target.Shape `json:"shape,omitempty"`
}

// Verdict is the outcome of one scan.
type Verdict struct {
	Passed   bool      `json:"passed"`
	Findings []Finding `json:"findings"`
}

// Counts returns the number of local-override findings and load failures.
func (v Verdict) Counts() (local, failures int) {
	for _, f := range v.Findings {
		switch f.Kind {
		case KindLocalOverride:
			local++
		case KindLoadFailure:
			failures++
		}
	}
	return local, failures
}

func newVerdict(findings []Finding) Verdict {
	if findings == nil {
		findings = []Finding{}
	}
	return Verdict{Passed: len(findings) == 0, Findings: findings}
}

// Merge concatenates verdicts in argument order.
func Merge(verdicts ...Verdict) Verdict {
	var all []Finding
	for _, v := range verdicts {
		all = append(all, v.Findings...)
	}
	return newVerdict(all)
}
