// Package scan runs the directive extractor and target classifier across a
// set of manifests and folds the results into a verdict.
package scan

import (
	"context"
	"strings"

	"replaceguard/internal/manifest"
	"replaceguard/internal/target"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scanner checks manifests for local replace targets.
type Scanner struct {
	loader     Loader
	classifier *target.Classifier
	logger     *zap.Logger
	jobs       int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClassifier replaces the default classifier.
func WithClassifier(c *target.Classifier) Option {
	return func(s *Scanner) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithJobs sets how many manifests are scanned at once. Values below 1 mean
// sequential.
func WithJobs(n int) Option {
	return func(s *Scanner) {
		s.jobs = n
	}
}

// New creates a Scanner reading manifests through loader.
func New(loader Loader, opts ...Option) *Scanner {
	s := &Scanner{
		loader:     loader,
		classifier: target.NewClassifier(),
		logger:     zap.NewNop(),
		jobs:       1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan checks every path and returns findings ordered by input path, then
// line. A path that fails to load becomes a finding; it does not stop the
// scan.
func (s *Scanner) Scan(ctx context.Context, paths []string) Verdict {
	log := s.logger.With(zap.String("scan_id", uuid.NewString()))
	log.Debug("scan started", zap.Int("manifests", len(paths)), zap.Int("jobs", s.jobs))

	perFile := make([][]Finding, len(paths))
	if s.jobs <= 1 || len(paths) <= 1 {
		for i, p := range paths {
			perFile[i] = s.scanFile(ctx, log, p)
		}
	} else {
		// Each goroutine owns one slot of perFile, so no locking is needed
		// and order is fixed by index.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.jobs)
		for i, p := range paths {
			g.Go(func() error {
				perFile[i] = s.scanFile(gctx, log, p)
				return nil
			})
		}
		_ = g.Wait()
	}

	var all []Finding
	for _, fs := range perFile {
		all = append(all, fs...)
	}
	v := newVerdict(all)

	local, failures := v.Counts()
	log.Debug("scan finished",
		zap.Bool("passed", v.Passed),
		zap.Int("local_overrides", local),
		zap.Int("load_failures", failures))
	return v
}

// ScanFile checks a single manifest.
func (s *Scanner) ScanFile(ctx context.Context, path string) []Finding {
	return s.scanFile(ctx, s.logger, path)
}

// ScanText checks manifest text that is already in memory. path is only used
// to label findings.
func (s *Scanner) ScanText(path, text string) []Finding {
	return s.scanText(s.logger, path, text)
}

func (s *Scanner) scanFile(ctx context.Context, log *zap.Logger, path string) []Finding {
	text, err := s.loader.Load(ctx, path)
	if err != nil {
		log.Warn("manifest load failed", zap.String("path", path), zap.Error(err))
		return []Finding{{
			Path:   path,
			Reason: ReasonLoadFailure + ": " + err.Error(),
			Kind:   KindLoadFailure,
		}}
	}
	return s.scanText(log, path, text)
}

func (s *Scanner) scanText(log *zap.Logger, path, text string) []Finding {
	var (
		findings []Finding
		sc       manifest.Scanner
		count    int
	)
	for _, line := range manifest.SplitLines(text) {
		d, ok := sc.Feed(line)
		if !ok {
			continue
		}
		count++
		res := s.classifier.Classify(d.Text)
		if res.Malformed() {
			log.Debug("replace directive has no target",
				zap.String("path", path), zap.Int("line", d.Line))
			continue
		}
		if !res.Local {
			continue
		}
		findings = append(findings, Finding{
			Path:   path,
			Line:   d.Line,
			Text:   strings.TrimSpace(d.Text),
			Reason: ReasonLocalOverride,
			Kind:   KindLocalOverride,
			Target: res.Target,
			Shape:  res.Shape,
		})
	}

	if sc.State() == manifest.Inside {
		log.Debug("replace block not closed before end of file", zap.String("path", path))
	}
	log.Debug("manifest scanned",
		zap.String("path", path),
		zap.Int("directives", count),
		zap.Int("findings", len(findings)))
	return findings
}
