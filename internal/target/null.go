package target

import (
	"context"

	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/trilean"
)

// KindNull is a target that only declares resources. It is useful for
// grouping and for resources produced outside the tool.
const KindNull = "null"

// Null never needs work.
type Null struct {
	Base
}

// NewNull is the factory of the null kind. It supports every phase unless
// phases are declared.
func NewNull(def Definition) (Target, error) {
	return &Null{
		Base: NewBase(def.ID, KindNull, def.PhasesOr(phase.AllSet()), def.Requires, def.Provides),
	}, nil
}

func (*Null) Dirty(context.Context, phase.Phase) trilean.Trilean { return trilean.No }

func (*Null) Execute(context.Context, phase.Phase) error { return nil }
