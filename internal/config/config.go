package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".replaceguard.yaml"

// Config holds all replaceguard configuration.
type Config struct {
	// File name a path argument must have to be scanned.
	ManifestName string `yaml:"manifest_name"`

	// Additional target prefixes treated as local, evaluated after the
	// built-in path shapes.
	ExtraLocalPrefixes []string `yaml:"extra_local_prefixes"`

	// Number of manifests scanned concurrently (1 = sequential).
	Jobs int `yaml:"jobs"`

	Output  OutputConfig  `yaml:"output"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// OutputConfig configures how verdicts are printed.
type OutputConfig struct {
	Format string `yaml:"format"` // text, json
	Color  bool   `yaml:"color"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ManifestName: "go.mod",
		Jobs:         1,
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if name := os.Getenv("REPLACEGUARD_MANIFEST"); name != "" {
		c.ManifestName = name
	}
	if level := os.Getenv("REPLACEGUARD_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if jobs := os.Getenv("REPLACEGUARD_JOBS"); jobs != "" {
		if n, err := strconv.Atoi(jobs); err == nil {
			c.Jobs = n
		}
	}
}

// GetWatchDebounce returns the watch debounce window as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d < 0 {
		return 500 * time.Millisecond
	}
	return d
}

// ValidFormats lists the supported output formats.
var ValidFormats = []string{"text", "json"}

// ValidLevels lists the supported log levels.
var ValidLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ManifestName) == "" {
		return fmt.Errorf("manifest_name must not be empty")
	}
	if strings.ContainsAny(c.ManifestName, `/\`) {
		return fmt.Errorf("manifest_name must be a file name, not a path: %s", c.ManifestName)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be >= 1")
	}
	if !contains(ValidFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (valid: %v)", c.Output.Format, ValidFormats)
	}
	if c.Logging.Level != "" && !contains(ValidLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLevels)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
