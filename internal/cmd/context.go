package cmd

import (
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/flowbuild/internal/checkpoint"
	"github.com/felixgeelhaar/flowbuild/internal/config"
	"github.com/felixgeelhaar/flowbuild/internal/log"
	"github.com/felixgeelhaar/flowbuild/internal/project"
	"github.com/felixgeelhaar/flowbuild/internal/target"
	"github.com/felixgeelhaar/flowbuild/internal/ux"
)

// CommandContext holds the global flags of a command invocation.
type CommandContext struct {
	ProjectPath string
	ConfigPath  string

	// overrides carries the flags that were set explicitly
	overrides config.Overrides

	// projectExplicit is true when --project was given
	projectExplicit bool
}

// NewCommandContext extracts the global flags from cmd.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	flags := cmd.Flags()

	projectPath, err := flags.GetString("project")
	if err != nil {
		return nil, err
	}
	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	cc := &CommandContext{
		ProjectPath:     projectPath,
		ConfigPath:      configPath,
		projectExplicit: flags.Changed("project"),
	}

	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		cc.overrides.LogLevel = &v
	}
	if flags.Changed("log-format") {
		v, _ := flags.GetString("log-format")
		cc.overrides.LogFormat = &v
	}
	if flags.Changed("format") {
		v, _ := flags.GetString("format")
		cc.overrides.Format = &v
	}
	if flags.Changed("no-color") {
		v, _ := flags.GetBool("no-color")
		cc.overrides.NoColor = &v
	}

	return cc, nil
}

// resolveProjectPath falls back to searching parent directories when the
// default project file is not in the working directory.
func (cc *CommandContext) resolveProjectPath() string {
	if cc.projectExplicit {
		return cc.ProjectPath
	}
	if _, err := os.Stat(cc.ProjectPath); !stderrors.Is(err, fs.ErrNotExist) {
		return cc.ProjectPath
	}
	if found, err := ux.DiscoverProjectFile(".", filepath.Base(cc.ProjectPath)); err == nil && found != "" {
		return found
	}
	return cc.ProjectPath
}

// Session is the configured environment a command runs in.
type Session struct {
	Config      *config.Config
	Logger      *log.Logger
	ProjectPath string
	Stdout      io.Writer
	Stderr      io.Writer
}

// newSession loads the configuration and sets up logging. extra holds
// command-specific flag overrides.
func newSession(cmd *cobra.Command, extra func(*config.Overrides)) (*Session, error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, err
	}
	projectPath := cc.resolveProjectPath()

	loader := config.NewLoader()
	loader.SetProjectDir(filepath.Dir(projectPath))
	cfg, err := loader.Load(cc.ConfigPath)
	if err != nil {
		return nil, err
	}

	overrides := cc.overrides
	if extra != nil {
		extra(&overrides)
	}
	cfg, err = overrides.Apply(cfg)
	if err != nil {
		return nil, err
	}

	logger := log.New(cfg.LogConfig(cmd.ErrOrStderr()))
	log.SetDefaultLogger(logger)
	logger.Debug("configuration loaded",
		"project", projectPath,
		"parallelism", cfg.Execution.Parallelism,
		"history", cfg.History.Enabled)

	return &Session{
		Config:      cfg,
		Logger:      logger,
		ProjectPath: projectPath,
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
	}, nil
}

// OpenProject loads and validates the project file.
func (s *Session) OpenProject() (*project.Project, error) {
	repo := project.NewFileRepository(target.Builtins(), s.Logger)
	return repo.Load(s.ProjectPath)
}

// Formatter returns the formatter for the configured output format,
// writing to stdout.
func (s *Session) Formatter() (ux.Formatter, error) {
	return ux.NewFormatter(s.Config.Output.Format, &ux.FormatterOptions{Writer: s.Stdout})
}

// TextOutput reports whether results are printed for humans.
func (s *Session) TextOutput() bool {
	return s.Config.Output.Format == ux.FormatText || s.Config.Output.Format == ""
}

// History returns the run history store. A relative directory is taken
// relative to the project file.
func (s *Session) History() *checkpoint.Manager {
	dir := s.Config.History.Dir
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(s.ProjectPath)
		if err != nil {
			abs = s.ProjectPath
		}
		dir = filepath.Join(filepath.Dir(abs), dir)
	}
	return checkpoint.NewManager(dir)
}
