package target

import (
	"context"
	"os"
	osexec "os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/trilean"
)

func newCommand(t *testing.T, dir, props string) *Command {
	t.Helper()
	def := definition("cmd", KindCommand)
	def.Dir = dir
	def.Config = config(t, props)
	tgt, err := NewCommand(def)
	require.NoError(t, err)
	return tgt.(*Command)
}

func TestCommandFactory(t *testing.T) {
	def := definition("cmd", KindCommand)
	def.Config = config(t, "creates: x")
	_, err := NewCommand(def)
	assert.Error(t, err, "commands are required")

	def.Config = config(t, "commands:\n  ship: echo")
	_, err = NewCommand(def)
	assert.Error(t, err, "unknown phase names are rejected")

	tgt := newCommand(t, "", "commands:\n  build: echo b\n  destroy: echo d")
	assert.Equal(t, phase.NewSet(phase.Build, phase.Destroy), tgt.Phases())
}

func TestCommandDirty(t *testing.T) {
	dir := t.TempDir()
	tgt := newCommand(t, dir, "commands:\n  build: touch out.txt\ncreates: out.txt")
	ctx := context.Background()

	assert.Equal(t, trilean.Yes, tgt.Dirty(ctx, phase.Build))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out.txt"), nil, 0o644))
	assert.Equal(t, trilean.No, tgt.Dirty(ctx, phase.Build))
	assert.Equal(t, trilean.Unknown, tgt.Dirty(ctx, phase.Destroy))

	plain := newCommand(t, dir, "commands:\n  build: true")
	assert.Equal(t, trilean.Unknown, plain.Dirty(ctx, phase.Build))
}

func TestCommandExecute(t *testing.T) {
	if _, err := osexec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	tgt := newCommand(t, dir, `
commands:
  build: echo "$GREETING" > out.txt
  verify: "echo missing rows >&2; exit 4"
env:
  GREETING: hello
`)
	ctx := context.Background()

	require.NoError(t, tgt.Execute(ctx, phase.Build))
	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	err = tgt.Execute(ctx, phase.Verify)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 4")
	assert.Contains(t, err.Error(), "missing rows")

	assert.NoError(t, tgt.Execute(ctx, phase.Create), "phases without a command succeed")
}
