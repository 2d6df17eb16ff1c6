// Package exec runs shell steps on the local machine.
package exec

import (
	"strings"
	"time"
)

// DefaultShell interprets step scripts when Step.Shell is empty.
const DefaultShell = "sh"

// Step represents a single shell invocation
type Step struct {
	ID      string
	Shell   string // Interpreter, invoked as <shell> -c <script>
	Script  string
	Workdir string
	Env     map[string]string // Added to the inherited environment
}

// Result represents the outcome of an execution step
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Failed reports whether the step exited non-zero.
func (r *Result) Failed() bool {
	return r.ExitCode != 0
}

// Tail returns the last n non-empty lines of stderr, falling back to stdout.
func (r *Result) Tail(n int) string {
	out := strings.TrimSpace(r.Stderr)
	if out == "" {
		out = strings.TrimSpace(r.Stdout)
	}
	lines := strings.Split(out, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
