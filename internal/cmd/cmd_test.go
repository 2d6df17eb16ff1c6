package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/flowbuild/internal/errors"
	"github.com/felixgeelhaar/flowbuild/internal/exitcode"
	"github.com/felixgeelhaar/flowbuild/internal/ux"
)

const demoProject = `name: demo
version: "1"

targets:
  raw:
    kind: file
    location: data/raw.csv
    content: "id\n1\n"

  report:
    kind: command
    requires:
      - file: data/raw.csv
    provides:
      - file: data/report.txt
    commands:
      build: cp data/raw.csv data/report.txt
    creates: data/report.txt

jobs:
  only_raw:
    targets: [raw]
`

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{
		"FLOWBUILD_CONFIG", "FLOWBUILD_LOG_LEVEL", "FLOWBUILD_LOG_FORMAT",
		"FLOWBUILD_PARALLELISM", "FLOWBUILD_KEEP_GOING", "FLOWBUILD_HISTORY_DIR",
		"FLOWBUILD_HISTORY_ENABLED", "FLOWBUILD_METRICS_FILE", "FLOWBUILD_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func writeProject(t *testing.T, content string) string {
	t.Helper()
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "short no-lifecycle", in: []string{"build", "-nl", "raw"}, want: []string{"build", "--no-lifecycle", "raw"}},
		{name: "long form kept", in: []string{"build", "--no-lifecycle"}, want: []string{"build", "--no-lifecycle"}},
		{name: "after separator", in: []string{"build", "--", "-nl"}, want: []string{"build", "--", "-nl"}},
		{name: "empty", in: []string{}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeArgs(tt.in))
		})
	}
}

func TestBuild_RunsLifecycleAndSkipsCleanTargets(t *testing.T) {
	path := writeProject(t, demoProject)
	dir := filepath.Dir(path)

	stdout, _, err := run(t, "build", "-p", path, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, stdout, "create → migrate → build")
	assert.Contains(t, stdout, "✓ demo/raw")
	assert.Contains(t, stdout, "✓ demo/report")
	assert.Contains(t, stdout, "SUCCESS")

	data, err := os.ReadFile(filepath.Join(dir, "data", "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(data))

	stdout, _, err = run(t, "build", "-p", path, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, stdout, "SKIPPED", "nothing is dirty on the second run")
	assert.NotContains(t, stdout, "✓ demo/")

	stdout, _, err = run(t, "build", "-p", path, "--no-color", "--force", "-nl", "report")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ demo/report")
	assert.Contains(t, stdout, "(forced)")
	assert.NotContains(t, stdout, "demo/raw")
}

func TestBuild_JSONOutput(t *testing.T) {
	path := writeProject(t, demoProject)

	stdout, stderr, err := run(t, "build", "-p", path, "--format", "json", "--no-color")
	require.NoError(t, err)

	var view ux.RunView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.Equal(t, "demo", view.Project)
	assert.Equal(t, "success", view.Status)
	assert.Equal(t, []string{"create", "migrate", "build"}, view.Phases)
	assert.NotEmpty(t, view.RunID)
	assert.Contains(t, stderr, "✓ demo/raw", "progress moves to stderr")
}

func TestBuild_DryRun(t *testing.T) {
	path := writeProject(t, demoProject)

	stdout, _, err := run(t, "build", "-p", path, "--dry-run", "-nl")
	require.NoError(t, err)
	assert.Equal(t, "BUILD\n  1. demo/raw (file)\n  2. demo/report (command)\n     after: demo/raw\n", stdout)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(path), "data", "raw.csv"))
}

func TestBuild_Job(t *testing.T) {
	path := writeProject(t, demoProject)

	stdout, _, err := run(t, "build", "-p", path, "--no-color", "-j", "only_raw")
	require.NoError(t, err)
	assert.Contains(t, stdout, "demo/raw")
	assert.NotContains(t, stdout, "demo/report")
}

func TestBuild_FailureIsCoded(t *testing.T) {
	path := writeProject(t, `name: broken
targets:
  step:
    kind: command
    commands:
      build: "echo nope >&2; exit 7"
`)

	stdout, _, err := run(t, "build", "-p", path, "--no-color", "-nl")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRunTargetFailed, errors.CodeOf(err))
	assert.Equal(t, exitcode.BuildFailed, exitcode.DetermineExitCode(err))
	assert.Contains(t, err.Error(), "exited with code 7")
	assert.Contains(t, stdout, "FAILED")
}

func TestVerify_FailureIsCoded(t *testing.T) {
	path := writeProject(t, demoProject)

	_, _, err := run(t, "verify", "-p", path, "--no-color", "-nl", "raw")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRunVerificationFailed, errors.CodeOf(err))
}

func TestBuild_CycleIsCoded(t *testing.T) {
	path := writeProject(t, `name: loop
targets:
  a:
    kind: null
    requires: [ "file:b" ]
    provides: [ "file:a" ]
  b:
    kind: null
    requires: [ "file:a" ]
    provides: [ "file:b" ]
`)

	_, stderr, err := run(t, "build", "-p", path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGraphCycle, errors.CodeOf(err))
	assert.Equal(t, exitcode.GraphInvalid, exitcode.DetermineExitCode(err))
	assert.Contains(t, stderr, "error_code=GRAPH-001")
}

func TestBuild_AmbiguousProviderIsCoded(t *testing.T) {
	path := writeProject(t, `name: twice
targets:
  a:
    kind: null
    provides: [ "file:shared" ]
  b:
    kind: null
    provides: [ "file:shared" ]
`)

	_, _, err := run(t, "graph", "build", "-p", path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGraphAmbiguousProvider, errors.CodeOf(err))
}

func TestBuild_UnknownTarget(t *testing.T) {
	path := writeProject(t, demoProject)

	_, _, err := run(t, "build", "-p", path, "nope")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProjectUnknownTarget, errors.CodeOf(err))
	assert.Equal(t, exitcode.ProjectInvalid, exitcode.DetermineExitCode(err))
}

func TestBuild_MissingProject(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "build", "-p", filepath.Join(t.TempDir(), "project.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProjectNotFound, errors.CodeOf(err))
}

func TestBuild_MetricsFile(t *testing.T) {
	path := writeProject(t, demoProject)
	metricsPath := filepath.Join(t.TempDir(), "flowbuild.prom")

	_, _, err := run(t, "build", "-p", path, "--no-color", "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `flowbuild_runs_total{status="success"} 1`)
	assert.Contains(t, string(data), `flowbuild_target_executions_total{kind="command",phase="build",status="success"} 1`)
}

func TestBuild_ConfigFile(t *testing.T) {
	path := writeProject(t, demoProject)
	cfgPath := filepath.Join(t.TempDir(), "ci.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("history:\n  enabled: false\noutput:\n  format: yaml\n"), 0o644))

	stdout, _, err := run(t, "build", "-p", path, "--config", cfgPath, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, stdout, "status: success")
	assert.NoDirExists(t, filepath.Join(filepath.Dir(path), ".flowbuild"))
}

func TestBuild_InvalidFlagOverride(t *testing.T) {
	path := writeProject(t, demoProject)

	_, _, err := run(t, "build", "-p", path, "--parallelism", "0")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
}

func TestGraph(t *testing.T) {
	path := writeProject(t, demoProject)

	stdout, _, err := run(t, "graph", "build", "-p", path, "--mermaid")
	require.NoError(t, err)
	assert.Contains(t, stdout, "graph TD")
	assert.Contains(t, stdout, `["demo/report"]`)

	stdout, _, err = run(t, "graph", "destroy", "-p", path, "--format", "json")
	require.NoError(t, err)
	var plan ux.PlanView
	require.NoError(t, json.Unmarshal([]byte(stdout), &plan))
	require.Len(t, plan.Phases, 1)
	assert.Equal(t, "destroy", plan.Phases[0].Phase)
	assert.Len(t, plan.Phases[0].Targets, 1, "only the file target supports destroy")

	stdout, _, err = run(t, "graph", "build", "-p", path, "--lifecycle", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &plan))
	assert.Len(t, plan.Phases, 3)

	_, _, err = run(t, "graph", "deploy", "-p", path)
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
}

const sharedInputProject = `name: shared
version: "1"

targets:
  raw:
    kind: file
    location: data/raw.csv
    content: "id\n1\n"

  left:
    kind: command
    requires:
      - file: data/raw.csv
    commands:
      build: cp data/raw.csv data/left.txt
      destroy: rm -f data/left.txt
    creates: data/left.txt

  right:
    kind: command
    requires:
      - file: data/raw.csv
    commands:
      build: cp data/raw.csv data/right.txt
      destroy: rm -f data/right.txt
    creates: data/right.txt
`

func TestDestroy_SharedInput(t *testing.T) {
	path := writeProject(t, sharedInputProject)
	dir := filepath.Dir(path)

	_, _, err := run(t, "build", "-p", path, "--no-color")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "data", "left.txt"))

	stdout, _, err := run(t, "graph", "destroy", "-p", path, "--format", "json")
	require.NoError(t, err)
	var plan ux.PlanView
	require.NoError(t, json.Unmarshal([]byte(stdout), &plan))
	require.Len(t, plan.Phases, 1)
	var order []string
	for _, pt := range plan.Phases[0].Targets {
		order = append(order, pt.Target)
	}
	assert.Equal(t, []string{"shared/left", "shared/right", "shared/raw"}, order)

	_, _, err = run(t, "destroy", "-p", path, "--no-color")
	require.NoError(t, err)
	for _, name := range []string{"raw.csv", "left.txt", "right.txt"} {
		assert.NoFileExists(t, filepath.Join(dir, "data", name))
	}

	_, _, err = run(t, "truncate", "-p", path, "--no-color", "left", "right")
	require.NoError(t, err, "targets without truncate support are simply left out")
}

func TestHistory(t *testing.T) {
	path := writeProject(t, demoProject)

	stdout, _, err := run(t, "build", "-p", path, "--format", "json")
	require.NoError(t, err)
	var view ux.RunView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))

	stdout, _, err = run(t, "history", "-p", path, "--format", "json")
	require.NoError(t, err)
	var list ux.HistoryView
	require.NoError(t, json.Unmarshal([]byte(stdout), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, view.RunID, list.Runs[0].RunID)
	assert.Equal(t, "success", list.Runs[0].Status)

	stdout, _, err = run(t, "history", view.RunID[:8], "-p", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Run:       "+view.RunID)
	assert.Contains(t, stdout, "demo/report")

	_, _, err = run(t, "history", "missing", "-p", path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRunHistoryNotFound, errors.CodeOf(err))
}

func TestVersion(t *testing.T) {
	isolate(t)
	stdout, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "flowbuild ")

	stdout, _, err = run(t, "version", "--format", "json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Contains(t, info, "go_version")
}

func TestUnknownCommand(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "deploy")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
}
