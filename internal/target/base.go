package target

import (
	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/resource"
)

// Base implements the metadata half of Target. Kinds embed it and supply
// Dirty and Execute.
type Base struct {
	id       Identifier
	kind     string
	phases   phase.Set
	requires []resource.Identifier
	provides []resource.Identifier
}

// NewBase returns a Base. The resource slices are copied.
func NewBase(id Identifier, kind string, phases phase.Set, requires, provides []resource.Identifier) Base {
	return Base{
		id:       id,
		kind:     kind,
		phases:   phases,
		requires: append([]resource.Identifier(nil), requires...),
		provides: append([]resource.Identifier(nil), provides...),
	}
}

func (b Base) Identifier() Identifier { return b.id }

func (b Base) Kind() string { return b.kind }

func (b Base) Phases() phase.Set { return b.phases }

// Requires returns the resources p reads. Teardown phases report the same
// resources as the others; the resolver reverses the order.
func (b Base) Requires(p phase.Phase) []resource.Identifier {
	if !b.phases.Contains(p) {
		return nil
	}
	return append([]resource.Identifier(nil), b.requires...)
}

// Provides returns the resources p produces, or removes in teardown phases.
func (b Base) Provides(p phase.Phase) []resource.Identifier {
	if !b.phases.Contains(p) {
		return nil
	}
	return append([]resource.Identifier(nil), b.provides...)
}
