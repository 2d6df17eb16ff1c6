package target

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/felixgeelhaar/flowbuild/internal/lazy"
	"github.com/felixgeelhaar/flowbuild/internal/log"
	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/resource"
	"github.com/felixgeelhaar/flowbuild/internal/trilean"
)

// KindFile manages a single local file.
const KindFile = "file"

type fileConfig struct {
	Location string  `yaml:"location"`
	Source   string  `yaml:"source"`
	Content  *string `yaml:"content"`
	Mode     string  `yaml:"mode"`
}

type fileResources struct {
	requires []resource.Identifier
	provides []resource.Identifier
}

// File writes location from source or from inline content.
type File struct {
	Base

	location   string
	source     string
	path       string
	sourcePath string
	content    *string
	mode       fs.FileMode
	resources  *lazy.Cell[fileResources]
	logger     *log.Logger
}

// NewFile is the factory of the file kind.
func NewFile(def Definition) (Target, error) {
	var cfg fileConfig
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.Location == "" {
		return nil, errors.New("file target requires a location")
	}
	if cfg.Source != "" && cfg.Content != nil {
		return nil, errors.New("file target accepts either source or content, not both")
	}

	mode := fs.FileMode(0o644)
	if cfg.Mode != "" {
		m, err := strconv.ParseUint(cfg.Mode, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid file mode %q: %w", cfg.Mode, err)
		}
		mode = fs.FileMode(m)
	}

	t := &File{
		Base:     NewBase(def.ID, KindFile, def.PhasesOr(phase.AllSet()), def.Requires, def.Provides),
		location: filepath.ToSlash(filepath.Clean(cfg.Location)),
		path:     resolvePath(def.Dir, cfg.Location),
		content:  cfg.Content,
		mode:     mode,
		logger:   def.logger(),
	}
	if cfg.Source != "" {
		t.source = filepath.ToSlash(filepath.Clean(cfg.Source))
		t.sourcePath = resolvePath(def.Dir, cfg.Source)
	}

	declaredRequires, declaredProvides := def.Requires, def.Provides
	t.resources = lazy.Of(func() fileResources {
		requires := resource.NewSet(declaredRequires...)
		if t.source != "" {
			requires.Add(resource.File(t.source))
		}
		provides := resource.NewSet(declaredProvides...)
		provides.Add(resource.File(t.location))
		return fileResources{requires: requires.Slice(), provides: provides.Slice()}
	})

	return t, nil
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) || dir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

// Path returns the resolved location of the managed file.
func (t *File) Path() string { return t.path }

// Requires includes the source file in addition to declared resources.
func (t *File) Requires(p phase.Phase) []resource.Identifier {
	if !t.Phases().Contains(p) {
		return nil
	}
	return append([]resource.Identifier(nil), t.resources.MustGet().requires...)
}

// Provides includes the managed file in addition to declared resources.
func (t *File) Provides(p phase.Phase) []resource.Identifier {
	if !t.Phases().Contains(p) {
		return nil
	}
	return append([]resource.Identifier(nil), t.resources.MustGet().provides...)
}

// Dirty inspects the filesystem. Stat failures other than a missing file
// yield Unknown.
func (t *File) Dirty(_ context.Context, p phase.Phase) trilean.Trilean {
	switch p {
	case phase.Create:
		return missing(filepath.Dir(t.path))
	case phase.Migrate:
		return trilean.No
	case phase.Build:
		return t.buildDirty()
	case phase.Verify:
		return trilean.Yes
	case phase.Truncate:
		info, err := os.Stat(t.path)
		if errors.Is(err, fs.ErrNotExist) {
			return trilean.No
		}
		if err != nil {
			return trilean.Unknown
		}
		return trilean.FromBool(info.Size() > 0)
	case phase.Destroy:
		return missing(t.path).Not()
	default:
		return trilean.Unknown
	}
}

func (t *File) buildDirty() trilean.Trilean {
	info, err := os.Stat(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return trilean.Yes
	}
	if err != nil {
		return trilean.Unknown
	}

	if t.sourcePath != "" {
		srcInfo, err := os.Stat(t.sourcePath)
		if err != nil {
			return trilean.Unknown
		}
		return trilean.FromBool(srcInfo.ModTime().After(info.ModTime()))
	}

	if t.content != nil {
		current, err := os.ReadFile(t.path)
		if err != nil {
			return trilean.Unknown
		}
		return trilean.FromBool(!bytes.Equal(current, []byte(*t.content)))
	}

	return trilean.No
}

func missing(path string) trilean.Trilean {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return trilean.No
	case errors.Is(err, fs.ErrNotExist):
		return trilean.Yes
	default:
		return trilean.Unknown
	}
}

func (t *File) Execute(ctx context.Context, p phase.Phase) error {
	return Dispatch(ctx, t, p)
}

func (t *File) Create(context.Context) error {
	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

func (t *File) Migrate(context.Context) error { return nil }

func (t *File) Build(context.Context) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", t.path, err)
	}

	switch {
	case t.sourcePath != "":
		if err := copyFile(t.sourcePath, t.path, t.mode); err != nil {
			return err
		}
		t.logger.Debug("copied file", "source", t.sourcePath, "location", t.path)
	case t.content != nil:
		if err := os.WriteFile(t.path, []byte(*t.content), t.mode); err != nil {
			return fmt.Errorf("write %s: %w", t.path, err)
		}
		t.logger.Debug("wrote file", "location", t.path, "bytes", len(*t.content))
	default:
		f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY, t.mode)
		if err != nil {
			return fmt.Errorf("create %s: %w", t.path, err)
		}
		return f.Close()
	}
	return nil
}

func (t *File) Verify(context.Context) error {
	info, err := os.Stat(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &VerificationError{Target: t.Identifier(), Reason: fmt.Sprintf("%s does not exist", t.path)}
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", t.path, err)
	}
	if info.IsDir() {
		return &VerificationError{Target: t.Identifier(), Reason: fmt.Sprintf("%s is a directory", t.path)}
	}
	return nil
}

func (t *File) Truncate(context.Context) error {
	err := os.Truncate(t.path, 0)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("truncate %s: %w", t.path, err)
	}
	return nil
}

func (t *File) Destroy(context.Context) error {
	err := os.Remove(t.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", t.path, err)
	}
	return nil
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
