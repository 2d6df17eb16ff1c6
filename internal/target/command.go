package target

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/felixgeelhaar/flowbuild/internal/exec"
	"github.com/felixgeelhaar/flowbuild/internal/log"
	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/trilean"
)

// KindCommand runs a shell command per phase.
const KindCommand = "command"

type commandConfig struct {
	Commands map[string]string `yaml:"commands"`
	Creates  string            `yaml:"creates"`
	Workdir  string            `yaml:"workdir"`
	Shell    string            `yaml:"shell"`
	Env      map[string]string `yaml:"env"`
}

// Command executes user supplied scripts.
type Command struct {
	Base

	commands map[phase.Phase]string
	creates  string
	workdir  string
	shell    string
	env      map[string]string
	logger   *log.Logger
}

// NewCommand is the factory of the command kind. Its phases default to the
// phases that have a command.
func NewCommand(def Definition) (Target, error) {
	var cfg commandConfig
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Commands) == 0 {
		return nil, errors.New("command target requires at least one entry in commands")
	}

	commands := make(map[phase.Phase]string, len(cfg.Commands))
	var defaults phase.Set
	for name, script := range cfg.Commands {
		p, err := phase.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("commands: %w", err)
		}
		commands[p] = script
		defaults = defaults.With(p)
	}

	workdir := def.Dir
	if cfg.Workdir != "" {
		workdir = resolvePath(def.Dir, cfg.Workdir)
	}
	creates := ""
	if cfg.Creates != "" {
		creates = resolvePath(def.Dir, cfg.Creates)
	}

	return &Command{
		Base:     NewBase(def.ID, KindCommand, def.PhasesOr(defaults), def.Requires, def.Provides),
		commands: commands,
		creates:  creates,
		workdir:  workdir,
		shell:    cfg.Shell,
		env:      cfg.Env,
		logger:   def.logger(),
	}, nil
}

// Dirty can only answer for BUILD when a creates path is configured.
func (t *Command) Dirty(_ context.Context, p phase.Phase) trilean.Trilean {
	if p == phase.Build && t.creates != "" {
		_, err := os.Stat(t.creates)
		switch {
		case err == nil:
			return trilean.No
		case errors.Is(err, fs.ErrNotExist):
			return trilean.Yes
		}
	}
	return trilean.Unknown
}

// Execute runs the command for p. Phases without a command succeed.
func (t *Command) Execute(ctx context.Context, p phase.Phase) error {
	script, ok := t.commands[p]
	if !ok || strings.TrimSpace(script) == "" {
		return nil
	}

	step := exec.Step{
		ID:      t.Identifier().String() + ":" + p.String(),
		Shell:   t.shell,
		Script:  script,
		Workdir: t.workdir,
		Env:     t.env,
	}

	t.logger.DebugContext(ctx, "running command", "phase", p.String(), "script", script)

	result, err := exec.Run(ctx, step)
	if err != nil {
		return err
	}

	logOutput(t.logger, p, "stdout", result.Stdout)
	logOutput(t.logger, p, "stderr", result.Stderr)

	if result.Failed() {
		return fmt.Errorf("command exited with code %d: %s", result.ExitCode, result.Tail(5))
	}
	return nil
}

func logOutput(l *log.Logger, p phase.Phase, stream, out string) {
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line != "" {
			l.Debug("command output", "phase", p.String(), "stream", stream, "line", line)
		}
	}
}
