package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"replaceguard/internal/logging"
	"replaceguard/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// watchCmd re-runs the check whenever a manifest changes.
var watchCmd = &cobra.Command{
	Use:   "watch [files...]",
	Short: "Re-check manifests every time they change",
	Long: `Runs the check once, then again each time one of the manifests is
written, until interrupted. Argument handling is the same as for the root
command.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths := manifestPaths(cfg, args)
	if len(paths) == 0 {
		return fmt.Errorf("no %s among the given files", cfg.ManifestName)
	}

	out := cmd.OutOrStdout()
	scanner := newScanner(cfg)
	check := func(ctx context.Context) {
		v := scanner.Scan(ctx, paths)
		if err := emit(out, cfg, v); err != nil && !errors.Is(err, errViolations) {
			categoryLogger(cfg, logging.CategoryCLI).Error("report failed", zap.Error(err))
		}
	}

	check(ctx)

	w, err := watch.New(paths, cfg.GetWatchDebounce(), func(ctx context.Context, changed []string) {
		categoryLogger(cfg, logging.CategoryWatch).Info("manifests changed", zap.Strings("paths", changed))
		check(ctx)
	}, categoryLogger(cfg, logging.CategoryWatch))
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := w.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	return nil
}
