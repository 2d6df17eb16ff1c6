package exec

import (
	"context"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := osexec.LookPath(DefaultShell); err != nil {
		t.Skip("sh not available")
	}
}

func TestRun(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name       string
		step       Step
		wantExit   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "success",
			step:       Step{ID: "echo", Script: "echo hello"},
			wantExit:   0,
			wantStdout: "hello",
		},
		{
			name:       "non-zero exit",
			step:       Step{ID: "fail", Script: "echo broken >&2; exit 3"},
			wantExit:   3,
			wantStderr: "broken",
		},
		{
			name:       "environment",
			step:       Step{ID: "env", Script: "echo $FLOWBUILD_TEST_VALUE", Env: map[string]string{"FLOWBUILD_TEST_VALUE": "42"}},
			wantExit:   0,
			wantStdout: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(context.Background(), tt.step)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if result.ExitCode != tt.wantExit {
				t.Errorf("ExitCode = %d, want %d", result.ExitCode, tt.wantExit)
			}
			if result.Failed() != (tt.wantExit != 0) {
				t.Errorf("Failed() = %v", result.Failed())
			}
			if !strings.Contains(result.Stdout, tt.wantStdout) {
				t.Errorf("Stdout = %q, want %q", result.Stdout, tt.wantStdout)
			}
			if !strings.Contains(result.Stderr, tt.wantStderr) {
				t.Errorf("Stderr = %q, want %q", result.Stderr, tt.wantStderr)
			}
		})
	}
}

func TestRunWorkdir(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	result, err := Run(context.Background(), Step{ID: "pwd", Script: "pwd", Workdir: dir})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(result.Stdout))
	want, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}

func TestRunCancelled(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := Run(ctx, Step{ID: "sleep", Script: "sleep 5"}); err == nil {
		t.Fatal("expected error for cancelled step")
	}
}

func TestRunMissingShell(t *testing.T) {
	_, err := Run(context.Background(), Step{ID: "x", Shell: "/nonexistent/shell", Script: "true"})
	if err == nil {
		t.Fatal("expected start error")
	}
}

func TestResultTail(t *testing.T) {
	r := &Result{Stderr: "one\ntwo\nthree\n"}
	if got := r.Tail(2); got != "two\nthree" {
		t.Errorf("Tail(2) = %q", got)
	}

	r = &Result{Stdout: "only stdout"}
	if got := r.Tail(5); got != "only stdout" {
		t.Errorf("Tail(5) = %q", got)
	}
}
