package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"replaceguard/internal/config"
	"replaceguard/internal/logging"
	"replaceguard/internal/report"
	"replaceguard/internal/scan"
	"replaceguard/internal/target"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCheck scans the manifests named on the command line once.
func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	paths := manifestPaths(cfg, args)
	ignored := 0
	if len(args) > 0 {
		ignored = len(args) - len(paths)
	}
	categoryLogger(cfg, logging.CategoryCLI).Debug("checking manifests",
		zap.Strings("paths", paths), zap.Int("ignored_args", ignored))

	v := newScanner(cfg).Scan(ctx, paths)
	return emit(cmd.OutOrStdout(), cfg, v)
}

// manifestPaths keeps the arguments named like the manifest. With no
// arguments at all it falls back to the manifest in the working directory.
func manifestPaths(cfg *config.Config, args []string) []string {
	if len(args) == 0 {
		return []string{filepath.Join(workdir, cfg.ManifestName)}
	}
	paths := make([]string, 0, len(args))
	for _, a := range args {
		if filepath.Base(a) == cfg.ManifestName {
			paths = append(paths, a)
		}
	}
	return paths
}

func newScanner(cfg *config.Config) *scan.Scanner {
	return scan.New(scan.FileLoader{},
		scan.WithClassifier(target.NewClassifier(cfg.ExtraLocalPrefixes...)),
		scan.WithLogger(categoryLogger(cfg, logging.CategoryScan)),
		scan.WithJobs(cfg.Jobs),
	)
}

// emit prints the verdict and converts a failing one into errViolations.
func emit(w io.Writer, cfg *config.Config, v scan.Verdict) error {
	f, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	if err := report.Write(w, v, report.Options{Format: f, Color: cfg.Output.Color}); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if !v.Passed {
		return errViolations
	}
	return nil
}
