package execution

import (
	"context"

	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/target"
	"github.com/felixgeelhaar/flowbuild/internal/trilean"
)

// ShouldExecute decides whether t runs in p. Forced targets always run;
// otherwise a target runs unless it reports it is clean. Unknown counts as
// dirty.
func ShouldExecute(ctx context.Context, t target.Target, p phase.Phase, force bool) bool {
	run, _ := decide(ctx, t, p, force)
	return run
}

// decide is ShouldExecute that also returns the dirty answer. Forced targets
// are not asked.
func decide(ctx context.Context, t target.Target, p phase.Phase, force bool) (bool, trilean.Trilean) {
	if force {
		return true, trilean.Unknown
	}
	dirty := t.Dirty(ctx, p)
	return !dirty.IsNo(), dirty
}
