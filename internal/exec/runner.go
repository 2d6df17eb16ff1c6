package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"time"
)

// Run executes a step and waits for it to finish. A non-zero exit is reported
// through Result.ExitCode; the error is set only when the process could not
// be started or the context ended.
func Run(ctx context.Context, step Step) (*Result, error) {
	shell := step.Shell
	if shell == "" {
		shell = DefaultShell
	}

	startTime := time.Now()

	cmd := exec.CommandContext(ctx, shell, "-c", step.Script)
	cmd.Dir = step.Workdir
	cmd.Env = buildEnv(step.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("step %s interrupted: %w", step.ID, ctxErr)
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to start step %s: %w", step.ID, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}, nil
}

// buildEnv appends extra variables in key order to the process environment
func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	for _, key := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, key+"="+extra[key])
	}
	return env
}
