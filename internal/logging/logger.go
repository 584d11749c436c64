// Package logging builds the zap loggers used across replaceguard.
// Loggers write to stderr so stdout stays reserved for the report.
// Each subsystem logs through a named category that can be switched off in
// the logging section of the config file.
package logging

import (
	"fmt"
	"strings"

	"replaceguard/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryCLI    Category = "cli"    // Command wiring, exit decisions
	CategoryConfig Category = "config" // Config loading
	CategoryScan   Category = "scan"   // Manifest scanning
	CategoryWatch  Category = "watch"  // Filesystem watching
)

// ParseLevel maps a config level name to a zap level. Unknown names map to
// warn.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// New builds the root logger. verbose forces debug level.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.Sampling = nil
	zc.DisableStacktrace = true

	level := ParseLevel(cfg.Level)
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.Format != "json" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// For returns the category logger derived from base, or a no-op logger when
// the category is disabled.
func For(base *zap.Logger, cfg config.LoggingConfig, category Category) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	if !cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return base.Named(string(category))
}
