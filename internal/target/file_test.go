package target

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/resource"
	"github.com/felixgeelhaar/flowbuild/internal/trilean"
)

func newFile(t *testing.T, dir, props string) *File {
	t.Helper()
	def := definition("out", KindFile)
	def.Dir = dir
	def.Config = config(t, props)
	tgt, err := NewFile(def)
	require.NoError(t, err)
	return tgt.(*File)
}

func TestFileFactoryValidation(t *testing.T) {
	tests := []struct {
		name  string
		props string
	}{
		{"missing location", "source: a.txt"},
		{"source and content", "location: out.txt\nsource: a.txt\ncontent: hi"},
		{"bad mode", "location: out.txt\nmode: rw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := definition("out", KindFile)
			def.Config = config(t, tt.props)
			_, err := NewFile(def)
			assert.Error(t, err)
		})
	}
}

func TestFileResources(t *testing.T) {
	tgt := newFile(t, t.TempDir(), "location: data/out.csv\nsource: data/in.csv")

	assert.Equal(t, []resource.Identifier{resource.File("data/in.csv")}, tgt.Requires(phase.Build))
	assert.Equal(t, []resource.Identifier{resource.File("data/out.csv")}, tgt.Provides(phase.Build))

	assert.Equal(t, []resource.Identifier{resource.File("data/in.csv")}, tgt.Requires(phase.Destroy))
	assert.Equal(t, []resource.Identifier{resource.File("data/out.csv")}, tgt.Provides(phase.Destroy))
}

func TestFileContentLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tgt := newFile(t, dir, "location: nested/out.txt\ncontent: hello\n")
	path := filepath.Join(dir, "nested", "out.txt")
	assert.Equal(t, path, tgt.Path())

	assert.Equal(t, trilean.Yes, tgt.Dirty(ctx, phase.Create))
	require.NoError(t, tgt.Execute(ctx, phase.Create))
	assert.Equal(t, trilean.No, tgt.Dirty(ctx, phase.Create))

	assert.Equal(t, trilean.No, tgt.Dirty(ctx, phase.Migrate))
	require.NoError(t, tgt.Execute(ctx, phase.Migrate))

	assert.Equal(t, trilean.Yes, tgt.Dirty(ctx, phase.Build))
	require.NoError(t, tgt.Execute(ctx, phase.Build))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, trilean.No, tgt.Dirty(ctx, phase.Build))

	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o644))
	assert.Equal(t, trilean.Yes, tgt.Dirty(ctx, phase.Build))

	assert.Equal(t, trilean.Yes, tgt.Dirty(ctx, phase.Verify))
	require.NoError(t, tgt.Execute(ctx, phase.Verify))

	assert.Equal(t, trilean.Yes, tgt.Dirty(ctx, phase.Truncate))
	require.NoError(t, tgt.Execute(ctx, phase.Truncate))
	assert.Equal(t, trilean.No, tgt.Dirty(ctx, phase.Truncate))

	assert.Equal(t, trilean.Yes, tgt.Dirty(ctx, phase.Destroy))
	require.NoError(t, tgt.Execute(ctx, phase.Destroy))
	assert.Equal(t, trilean.No, tgt.Dirty(ctx, phase.Destroy))
	assert.NoFileExists(t, path)

	require.NoError(t, tgt.Execute(ctx, phase.Destroy), "destroying a missing file succeeds")
	assert.Equal(t, trilean.No, tgt.Dirty(ctx, phase.Truncate))
}

func TestFileVerifyMissing(t *testing.T) {
	tgt := newFile(t, t.TempDir(), "location: missing.txt")

	err := tgt.Execute(context.Background(), phase.Verify)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestFileCopyFromSource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	tgt := newFile(t, dir, "location: out/copy.txt\nsource: in.txt\nmode: \"600\"")
	require.NoError(t, tgt.Execute(ctx, phase.Build))

	dst := filepath.Join(dir, "out", "copy.txt")
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, trilean.No, tgt.Dirty(ctx, phase.Build))

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(src, future, future))
	assert.Equal(t, trilean.Yes, tgt.Dirty(ctx, phase.Build), "newer source makes the copy dirty")

	require.NoError(t, os.Remove(src))
	assert.Equal(t, trilean.Unknown, tgt.Dirty(ctx, phase.Build), "unreadable source cannot be judged")
}

func TestFileTouchWithoutContent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tgt := newFile(t, dir, "location: marker")

	require.NoError(t, tgt.Execute(ctx, phase.Build))
	assert.FileExists(t, filepath.Join(dir, "marker"))
	assert.Equal(t, trilean.No, tgt.Dirty(ctx, phase.Build))
}
