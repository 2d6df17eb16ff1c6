package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/target"
	"github.com/felixgeelhaar/flowbuild/internal/trilean"
)

type pairKey struct {
	Phase  phase.Phase
	Target target.Identifier
}

func (k pairKey) String() string {
	return fmt.Sprintf("%s[%s]", k.Target, k.Phase)
}

// Record is the outcome of one (target, phase) pair.
type Record struct {
	Target   target.Identifier
	Kind     string
	Phase    phase.Phase
	Status   Status
	Dirty    trilean.Trilean // Unknown when forced
	Forced   bool
	Err      error
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

func (r Record) key() pairKey {
	return pairKey{Phase: r.Phase, Target: r.Target}
}

// Result collects the records of a run, grouped by phase and ordered by
// execution order within each phase.
type Result struct {
	RunID  string
	Phases []phase.Phase
	Start  time.Time
	End    time.Time

	byPhase map[phase.Phase][]Record
}

func newResult(runID string, phases []phase.Phase) *Result {
	return &Result{
		RunID:   runID,
		Phases:  append([]phase.Phase(nil), phases...),
		byPhase: make(map[phase.Phase][]Record, len(phases)),
	}
}

// All returns every record in execution order.
func (r *Result) All() []Record {
	var out []Record
	for _, p := range r.Phases {
		out = append(out, r.byPhase[p]...)
	}
	return out
}

// Records returns the records of phase p.
func (r *Result) Records(p phase.Phase) []Record {
	return append([]Record(nil), r.byPhase[p]...)
}

// Record returns the record of a single pair.
func (r *Result) Record(id target.Identifier, p phase.Phase) (Record, bool) {
	for _, rec := range r.byPhase[p] {
		if rec.Target == id {
			return rec, true
		}
	}
	return Record{}, false
}

// Status aggregates the status of every record.
func (r *Result) Status() Status {
	all := r.All()
	statuses := make([]Status, len(all))
	for i, rec := range all {
		statuses[i] = rec.Status
	}
	return Aggregate(statuses...)
}

// PhaseStatus aggregates the records of phase p.
func (r *Result) PhaseStatus(p phase.Phase) Status {
	recs := r.byPhase[p]
	statuses := make([]Status, len(recs))
	for i, rec := range recs {
		statuses[i] = rec.Status
	}
	return Aggregate(statuses...)
}

// Failures returns the failed records in execution order.
func (r *Result) Failures() []Record {
	var out []Record
	for _, rec := range r.All() {
		if rec.Status == StatusFailed {
			out = append(out, rec)
		}
	}
	return out
}

// Counts returns how many records ended in each status.
func (r *Result) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, rec := range r.All() {
		counts[rec.Status]++
	}
	return counts
}

// Err joins the errors of failed records, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, rec := range r.Failures() {
		errs = append(errs, rec.Err)
	}
	return errors.Join(errs...)
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.End.Sub(r.Start)
}
