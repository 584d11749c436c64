// Command replaceguard fails when a go.mod replace directive points at the
// local filesystem.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"replaceguard/internal/config"
	"replaceguard/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workdir    string
	format     string
	color      bool
	jobs       int

	// Logger
	logger *zap.Logger

	version = "dev"
)

// errViolations is returned when a scan finds local overrides or unreadable
// manifests. The report has already been printed by then.
var errViolations = errors.New("local replace directives found")

// rootCmd runs a single check over the given manifests.
var rootCmd = &cobra.Command{
	Use:   "replaceguard [files...]",
	Short: "Reject go.mod replace directives that point at the local filesystem",
	Long: `Scans go.mod files for replace directives whose target is a local path
(./x, ../x, /abs, ~/x, C:\x) and exits non-zero when any are found.

Arguments whose file name is not the configured manifest name are ignored,
so the command can be used directly as a pre-commit hook. With no arguments
the go.mod in the working directory is checked.

Exit codes:
  0  no local replace directives
  1  local replace directives found, or a manifest could not be read
  2  usage or configuration error`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runCheck,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the replaceguard version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "replaceguard %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workdir>/"+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVarP(&workdir, "workdir", "C", "", "Directory holding the default manifest (default: current)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "text", "Output format: text or json")
	rootCmd.PersistentFlags().BoolVar(&color, "color", true, "Colorize text output when writing to a terminal")
	rootCmd.PersistentFlags().IntVarP(&jobs, "jobs", "j", 1, "Number of manifests scanned concurrently")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errViolations) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errViolations):
		return 1
	default:
		return 2
	}
}

// resolveConfig loads the config file and applies explicitly set flags on
// top of it.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(workdir, config.DefaultPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = format
	}
	if flags.Changed("color") {
		cfg.Output.Color = color
	}
	if flags.Changed("jobs") {
		cfg.Jobs = jobs
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func categoryLogger(cfg *config.Config, cat logging.Category) *zap.Logger {
	return logging.For(logger, cfg.Logging, cat)
}
