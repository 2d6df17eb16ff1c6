package project

import (
	"fmt"
	"slices"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/flowbuild/internal/errors"
	"github.com/felixgeelhaar/flowbuild/internal/lazy"
	"github.com/felixgeelhaar/flowbuild/internal/log"
	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/target"
)

// Project is a loaded project file. Targets are instantiated on first use.
type Project struct {
	Name    string
	Version string
	Path    string // file the project was loaded from
	Dir     string // base directory for relative paths
	Specs   []TargetSpec
	Jobs    map[string]Job

	fingerprint string
	registry    *target.Registry
	logger      *log.Logger
	index       map[string]int
	instances   []*lazy.Cell[target.Target]
}

func newProject(doc document, specs []TargetSpec, registry *target.Registry, logger *log.Logger) *Project {
	p := &Project{
		Name:     doc.Name,
		Version:  doc.Version,
		Specs:    specs,
		Jobs:     doc.Jobs,
		registry: registry,
		logger:   logger,
		index:    make(map[string]int, len(specs)),
	}
	for i := range specs {
		spec := &p.Specs[i]
		p.index[spec.Name] = i
		p.instances = append(p.instances, lazy.New(func() (target.Target, error) {
			return p.instantiate(spec)
		}))
	}
	return p
}

func (p *Project) instantiate(spec *TargetSpec) (target.Target, error) {
	phases, err := phase.ParseSet(spec.Phases)
	if err != nil {
		return nil, err
	}

	t, err := p.registry.Create(target.Definition{
		ID:       target.Identifier{Project: p.Name, Name: spec.Name},
		Kind:     spec.Kind,
		Phases:   phases,
		Requires: identifiers(spec.Requires),
		Provides: identifiers(spec.Provides),
		Dir:      p.Dir,
		Config:   spec.node,
		Logger:   p.logger,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeProjectInvalid, fmt.Sprintf("cannot instantiate target %s", spec.Name), err).
			WithSuggestion(fmt.Sprintf("Check the properties of the %s target kind", spec.Kind))
	}
	p.logger.Debug("target instantiated", "target", spec.Name, "kind", spec.Kind)
	return t, nil
}

// Names returns the target names in declaration order.
func (p *Project) Names() []string {
	names := make([]string, len(p.Specs))
	for i, s := range p.Specs {
		names[i] = s.Name
	}
	return names
}

// JobNames returns the job names, sorted.
func (p *Project) JobNames() []string {
	names := make([]string, 0, len(p.Jobs))
	for name := range p.Jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Target returns the named target, instantiating it on first use.
func (p *Project) Target(name string) (target.Target, error) {
	i, ok := p.index[name]
	if !ok {
		return nil, errors.NewUnknownTargetError(name, p.Names())
	}
	return p.instances[i].Get()
}

// Targets returns every target in declaration order.
func (p *Project) Targets() ([]target.Target, error) {
	return p.lookup(p.Names())
}

// Select picks the targets of a run: the named targets if any, else the
// targets of job, else every target. The result keeps declaration order and
// holds no duplicates.
func (p *Project) Select(names []string, job string) ([]target.Target, error) {
	switch {
	case len(names) > 0:
		return p.lookup(p.ordered(names))
	case job != "":
		j, ok := p.Jobs[job]
		if !ok {
			return nil, errors.NewUnknownJobError(job).
				WithSuggestion(fmt.Sprintf("Available jobs: %v", p.JobNames()))
		}
		return p.lookup(p.ordered(j.Targets))
	default:
		return p.Targets()
	}
}

// ordered sorts names by declaration order and drops duplicates. Unknown
// names are kept at the end so lookup reports them.
func (p *Project) ordered(names []string) []string {
	out := slices.Clone(names)
	slices.SortStableFunc(out, func(a, b string) int {
		ia, oka := p.index[a]
		ib, okb := p.index[b]
		switch {
		case oka && okb:
			return ia - ib
		case oka:
			return -1
		case okb:
			return 1
		default:
			return 0
		}
	})
	return slices.Compact(out)
}

func (p *Project) lookup(names []string) ([]target.Target, error) {
	out := make([]target.Target, 0, len(names))
	for _, name := range names {
		t, err := p.Target(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Fingerprint is the blake3 hash of the project file contents.
func (p *Project) Fingerprint() string {
	return p.fingerprint
}

func fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}
