package execution

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/resource"
	"github.com/felixgeelhaar/flowbuild/internal/target"
	"github.com/felixgeelhaar/flowbuild/internal/trilean"
)

// journal records executions across goroutines.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeTarget struct {
	target.Base
	journal *journal
	dirty   map[phase.Phase]trilean.Trilean
	errs    map[phase.Phase]error
	run     func(ctx context.Context, p phase.Phase) error
	panics  bool
}

// fake builds a target that provides file:<name> and requires file:<dep>
// for each dep. It supports phases, defaulting to BUILD only.
func fake(j *journal, name string, deps []string, phases ...phase.Phase) *fakeTarget {
	if len(phases) == 0 {
		phases = []phase.Phase{phase.Build}
	}
	var requires []resource.Identifier
	for _, d := range deps {
		requires = append(requires, resource.File(d))
	}
	return &fakeTarget{
		Base: target.NewBase(
			target.Identifier{Project: "test", Name: name},
			"fake",
			phase.NewSet(phases...),
			requires,
			[]resource.Identifier{resource.File(name)},
		),
		journal: j,
		dirty:   make(map[phase.Phase]trilean.Trilean),
		errs:    make(map[phase.Phase]error),
	}
}

func (f *fakeTarget) withDirty(p phase.Phase, d trilean.Trilean) *fakeTarget {
	f.dirty[p] = d
	return f
}

func (f *fakeTarget) failing(p phase.Phase, err error) *fakeTarget {
	f.errs[p] = err
	return f
}

func (f *fakeTarget) Dirty(_ context.Context, p phase.Phase) trilean.Trilean {
	if d, ok := f.dirty[p]; ok {
		return d
	}
	return trilean.Yes
}

func (f *fakeTarget) Execute(ctx context.Context, p phase.Phase) error {
	if f.panics {
		panic("target exploded")
	}
	if f.journal != nil {
		f.journal.add(f.Identifier().Name + ":" + p.String())
	}
	if f.run != nil {
		if err := f.run(ctx, p); err != nil {
			return err
		}
	}
	return f.errs[p]
}

func targets(ts ...*fakeTarget) []target.Target {
	out := make([]target.Target, len(ts))
	for i, t := range ts {
		out[i] = t
	}
	return out
}

func names(ts []target.Target) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Identifier().Name
	}
	return out
}

func id(name string) target.Identifier {
	return target.Identifier{Project: "test", Name: name}
}
