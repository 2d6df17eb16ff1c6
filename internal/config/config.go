// Package config holds the tool settings that are not part of a project:
// logging, execution defaults, run history and metrics output.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/flowbuild/internal/log"
	"github.com/felixgeelhaar/flowbuild/internal/version"
)

// FileName is the project-level configuration file.
const FileName = "flowbuild.yaml"

// Config is the resolved configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Execution ExecutionConfig `yaml:"execution" json:"execution"`
	History   HistoryConfig   `yaml:"history" json:"history"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Output    OutputConfig    `yaml:"output" json:"output"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// ExecutionConfig holds runner defaults.
type ExecutionConfig struct {
	Parallelism int  `yaml:"parallelism" json:"parallelism"`
	KeepGoing   bool `yaml:"keep_going" json:"keep_going"`
}

// HistoryConfig controls run history persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
	// Keep is the number of runs retained; 0 keeps everything.
	Keep int `yaml:"keep" json:"keep"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile,omitempty"`
}

// OutputConfig controls how results are printed.
type OutputConfig struct {
	Format  string `yaml:"format" json:"format"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Execution: ExecutionConfig{
			Parallelism: 1,
		},
		History: HistoryConfig{
			Enabled: true,
			Dir:     ".flowbuild/runs",
			Keep:    50,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

var (
	validLevels        = []string{"debug", "info", "warn", "warning", "error"}
	validLogFormats    = []string{"text", "json"}
	validOutputFormats = []string{"text", "json", "yaml"}
)

// Validate checks every section.
func (c *Config) Validate() error {
	if !oneOf(c.Logging.Level, validLevels) {
		return fmt.Errorf("logging.level %q must be one of %s", c.Logging.Level, strings.Join(validLevels, ", "))
	}
	if !oneOf(c.Logging.Format, validLogFormats) {
		return fmt.Errorf("logging.format %q must be one of %s", c.Logging.Format, strings.Join(validLogFormats, ", "))
	}
	if c.Execution.Parallelism < 1 {
		return fmt.Errorf("execution.parallelism must be at least 1, got %d", c.Execution.Parallelism)
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Dir) == "" {
		return fmt.Errorf("history.dir cannot be empty when history is enabled")
	}
	if c.History.Keep < 0 {
		return fmt.Errorf("history.keep cannot be negative")
	}
	if !oneOf(c.Output.Format, validOutputFormats) {
		return fmt.Errorf("output.format %q must be one of %s", c.Output.Format, strings.Join(validOutputFormats, ", "))
	}
	return nil
}

// normalize lower-cases the enumerated settings.
func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// LogConfig converts the logging section into a logger configuration
// writing to w.
func (c *Config) LogConfig(w io.Writer) log.Config {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(c.Logging.Level)
	cfg.Format = log.ParseFormat(c.Logging.Format)
	cfg.Output = log.NewOutput(w)
	cfg.ServiceVersion = version.Version
	cfg.AddSource = cfg.Level == log.LevelDebug
	return cfg
}
