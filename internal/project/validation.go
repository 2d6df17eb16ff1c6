package project

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/target"
)

// Validate checks a target declaration against the registered kinds
func (t *TargetSpec) Validate(registry *target.Registry) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("target name cannot be empty")
	}
	if strings.ContainsAny(t.Name, "/ ") {
		return fmt.Errorf("target %q: name cannot contain '/' or spaces", t.Name)
	}

	if strings.TrimSpace(t.Kind) == "" {
		return fmt.Errorf("target %q: kind cannot be empty", t.Name)
	}
	if _, ok := registry.Lookup(t.Kind); !ok {
		return fmt.Errorf("target %q: unknown kind %q (available: %s)", t.Name, t.Kind, strings.Join(registry.Kinds(), ", "))
	}

	if _, err := phase.ParseSet(t.Phases); err != nil {
		return fmt.Errorf("target %q: %w", t.Name, err)
	}

	for i, r := range append(append([]ResourceRef(nil), t.Requires...), t.Provides...) {
		if err := r.ID.Validate(); err != nil {
			return fmt.Errorf("target %q: resource at index %d is invalid: %w", t.Name, i, err)
		}
	}

	return nil
}

// Validate checks the project as a whole
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name cannot be empty")
	}

	if len(p.Specs) == 0 {
		return fmt.Errorf("project must declare at least one target")
	}

	seen := make(map[string]bool, len(p.Specs))
	for i := range p.Specs {
		spec := &p.Specs[i]
		if seen[spec.Name] {
			return fmt.Errorf("target %q is declared more than once", spec.Name)
		}
		seen[spec.Name] = true

		if err := spec.Validate(p.registry); err != nil {
			return err
		}
	}

	for name, job := range p.Jobs {
		if len(job.Targets) == 0 {
			return fmt.Errorf("job %q must list at least one target", name)
		}
		for _, t := range job.Targets {
			if !seen[t] {
				return fmt.Errorf("job %q references unknown target %q", name, t)
			}
		}
	}

	return nil
}
