package project

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/flowbuild/internal/errors"
	"github.com/felixgeelhaar/flowbuild/internal/log"
	"github.com/felixgeelhaar/flowbuild/internal/target"
)

// Repository loads projects.
// This interface enables dependency injection and makes testing easier.
type Repository interface {
	Load(path string) (*Project, error)
}

// FileRepository loads projects from YAML files
type FileRepository struct {
	Registry *target.Registry
	Logger   *log.Logger
}

// NewFileRepository creates a repository instantiating targets through
// registry. A nil registry means the built-in kinds; a nil logger means the
// process default logger.
func NewFileRepository(registry *target.Registry, logger *log.Logger) *FileRepository {
	if registry == nil {
		registry = target.Builtins()
	}
	return &FileRepository{Registry: registry, Logger: logger}
}

func (r *FileRepository) logger() *log.Logger {
	if r.Logger == nil {
		return log.DefaultLogger()
	}
	return r.Logger
}

// Load reads and validates a project file. Relative paths inside the project
// are resolved against the file's directory.
func (r *FileRepository) Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewProjectNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("read project file %s", path), err)
	}

	p, err := r.Parse(data)
	if err != nil {
		var flowErr *errors.FlowError
		if stderrors.As(err, &flowErr) {
			return nil, err
		}
		return nil, errors.NewFileUnmarshalError(errors.ErrCodeProjectUnmarshal, path, "YAML", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	p.Path = abs
	p.Dir = filepath.Dir(abs)

	r.logger().Debug("project loaded", "project", p.Name, "path", p.Path, "targets", len(p.Specs))
	return p, nil
}

// Parse decodes and validates project YAML. Relative paths resolve against
// the working directory until Dir is set.
func (r *FileRepository) Parse(data []byte) (*Project, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	specs, err := decodeTargets(&doc.Targets)
	if err != nil {
		return nil, err
	}

	p := newProject(doc, specs, r.Registry, r.logger())
	p.fingerprint = fingerprint(data)

	if err := p.Validate(); err != nil {
		return nil, errors.NewProjectInvalidError(err.Error())
	}
	return p, nil
}

// decodeTargets walks the targets mapping in document order
func decodeTargets(node *yaml.Node) ([]TargetSpec, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: targets must be a mapping of name to target", node.Line)
	}

	specs := make([]TargetSpec, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: target %q must be a mapping", value.Line, key.Value)
		}

		var spec TargetSpec
		if err := value.Decode(&spec); err != nil {
			return nil, fmt.Errorf("target %q: %w", key.Value, err)
		}
		if spec.Kind == "" && nullKind(value) {
			spec.Kind = target.KindNull
		}
		spec.Name = key.Value
		spec.node = value
		specs = append(specs, spec)
	}
	return specs, nil
}

// nullKind reports whether the mapping says "kind: null", which YAML reads
// as a null value rather than the string.
func nullKind(mapping *yaml.Node) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == "kind" {
			v := mapping.Content[i+1]
			return v.Tag == "!!null" && v.Value == "null"
		}
	}
	return false
}

// Default instance for package-level functions
var defaultRepository = NewFileRepository(nil, nil)

// Load reads a project with the built-in target kinds.
func Load(path string) (*Project, error) {
	return defaultRepository.Load(path)
}
