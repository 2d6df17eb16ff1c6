package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/flowbuild/internal/errors"
)

// Environment variables read by the loader.
const (
	EnvConfig         = "FLOWBUILD_CONFIG"
	EnvLogLevel       = "FLOWBUILD_LOG_LEVEL"
	EnvLogFormat      = "FLOWBUILD_LOG_FORMAT"
	EnvParallelism    = "FLOWBUILD_PARALLELISM"
	EnvKeepGoing      = "FLOWBUILD_KEEP_GOING"
	EnvHistoryDir     = "FLOWBUILD_HISTORY_DIR"
	EnvHistoryEnabled = "FLOWBUILD_HISTORY_ENABLED"
	EnvMetricsFile    = "FLOWBUILD_METRICS_FILE"
	EnvFormat         = "FLOWBUILD_FORMAT"
	EnvNoColor        = "NO_COLOR"
)

// Loader resolves configuration from several sources.
//
// Precedence (highest to lowest):
//  1. CLI flags (see Overrides)
//  2. Environment variables
//  3. Explicit file (--config or FLOWBUILD_CONFIG)
//  4. Project file (./flowbuild.yaml)
//  5. User file (~/.flowbuild/config.yaml)
//  6. Built-in defaults
type Loader struct {
	// projectDir is where flowbuild.yaml is looked up
	projectDir string

	// userDir holds the user-level config.yaml
	userDir string

	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader reading the real environment.
func NewLoader() *Loader {
	homeDir, _ := os.UserHomeDir()
	return &Loader{
		projectDir: ".",
		userDir:    filepath.Join(homeDir, ".flowbuild"),
		lookupEnv:  os.LookupEnv,
	}
}

// SetProjectDir sets the directory searched for flowbuild.yaml.
func (l *Loader) SetProjectDir(dir string) {
	l.projectDir = dir
}

// SetUserDir sets the directory searched for config.yaml.
func (l *Loader) SetUserDir(dir string) {
	l.userDir = dir
}

// SetEnv replaces the environment lookup, for tests.
func (l *Loader) SetEnv(lookup func(string) (string, bool)) {
	l.lookupEnv = lookup
}

// Load resolves the configuration. explicit names a file that must exist;
// when empty, FLOWBUILD_CONFIG is consulted.
func (l *Loader) Load(explicit string) (*Config, error) {
	cfg := Default()

	if l.userDir != "" {
		if _, err := l.layerFile(cfg, filepath.Join(l.userDir, "config.yaml"), false); err != nil {
			return nil, err
		}
	}
	if _, err := l.layerFile(cfg, filepath.Join(l.projectDir, FileName), false); err != nil {
		return nil, err
	}

	if explicit == "" {
		explicit, _ = l.lookupEnv(EnvConfig)
	}
	if explicit != "" {
		if _, err := l.layerFile(cfg, explicit, true); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigInvalidError(err.Error())
	}
	return cfg, nil
}

// layerFile decodes path over cfg, so only keys present in the file change.
func (l *Loader) layerFile(cfg *Config, path string, required bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) && !required {
			return false, nil
		}
		if stderrors.Is(err, fs.ErrNotExist) {
			return false, errors.NewFileNotFoundError(path)
		}
		return false, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("read config file %s", path), err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		v, _ := l.lookupEnv(key)
		return v
	})

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return false, errors.NewFileUnmarshalError(errors.ErrCodeConfigUnmarshal, path, "YAML", err)
	}
	return true, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	if v, ok := l.env(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	if v, ok := l.env(EnvLogFormat); ok {
		cfg.Logging.Format = v
	}
	if v, ok := l.env(EnvParallelism); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewConfigInvalidError(fmt.Sprintf("%s=%q is not a number", EnvParallelism, v))
		}
		cfg.Execution.Parallelism = n
	}
	if v, ok := l.env(EnvKeepGoing); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NewConfigInvalidError(fmt.Sprintf("%s=%q is not a boolean", EnvKeepGoing, v))
		}
		cfg.Execution.KeepGoing = b
	}
	if v, ok := l.env(EnvHistoryDir); ok {
		cfg.History.Dir = v
	}
	if v, ok := l.env(EnvHistoryEnabled); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NewConfigInvalidError(fmt.Sprintf("%s=%q is not a boolean", EnvHistoryEnabled, v))
		}
		cfg.History.Enabled = b
	}
	if v, ok := l.env(EnvMetricsFile); ok {
		cfg.Metrics.Textfile = v
	}
	if v, ok := l.env(EnvFormat); ok {
		cfg.Output.Format = v
	}
	if _, ok := l.lookupEnv(EnvNoColor); ok {
		cfg.Output.NoColor = true
	}
	return nil
}

// env returns a non-empty, trimmed variable.
func (l *Loader) env(key string) (string, bool) {
	v, ok := l.lookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Overrides carries CLI flag values; nil fields were not set.
type Overrides struct {
	LogLevel    *string
	LogFormat   *string
	Parallelism *int
	KeepGoing   *bool
	MetricsFile *string
	Format      *string
	NoColor     *bool
}

// Apply returns a copy of cfg with the overrides applied and validated.
func (o Overrides) Apply(cfg *Config) (*Config, error) {
	merged := *cfg

	if o.LogLevel != nil {
		merged.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		merged.Logging.Format = *o.LogFormat
	}
	if o.Parallelism != nil {
		merged.Execution.Parallelism = *o.Parallelism
	}
	if o.KeepGoing != nil {
		merged.Execution.KeepGoing = *o.KeepGoing
	}
	if o.MetricsFile != nil {
		merged.Metrics.Textfile = *o.MetricsFile
	}
	if o.Format != nil {
		merged.Output.Format = *o.Format
	}
	if o.NoColor != nil {
		merged.Output.NoColor = *o.NoColor
	}

	merged.normalize()
	if err := merged.Validate(); err != nil {
		return nil, errors.NewConfigInvalidError(err.Error())
	}
	return &merged, nil
}
