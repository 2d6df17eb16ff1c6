// Package execution resolves target dependencies per phase and drives
// targets through their phases.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/flowbuild/internal/log"
	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/target"
	"github.com/felixgeelhaar/flowbuild/internal/trilean"
)

// Request describes one run.
type Request struct {
	// RunID identifies the run. A random UUID is used when empty.
	RunID   string
	Targets []target.Target
	// Phases run in the given order. Use phase.Expand to derive them from
	// a requested phase.
	Phases    []phase.Phase
	Force     bool
	KeepGoing bool
}

// Runner executes requests. A Runner may be reused across runs.
type Runner struct {
	parallelism int
	listener    Listener
	logger      *log.Logger
	now         func() time.Time

	emitMu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithParallelism runs up to n independent targets of a phase at once.
// Values below 2 run targets one at a time.
func WithParallelism(n int) Option {
	return func(r *Runner) {
		r.parallelism = n
	}
}

// WithListener adds listeners to the run.
func WithListener(ls ...Listener) Option {
	return func(r *Runner) {
		if existing, ok := r.listener.(MultiListener); ok {
			r.listener = append(existing, ls...)
			return
		}
		r.listener = append(MultiListener{r.listener}, ls...)
	}
}

// WithLogger sets the logger used for runner diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner returns a sequential runner without listeners.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		parallelism: 1,
		listener:    MultiListener{},
		logger:      log.DefaultLogger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExecuteTargets runs targets through phases with a silent sequential runner
// and returns the aggregate status. Graph errors yield StatusFailed.
func ExecuteTargets(ctx context.Context, targets []target.Target, phases []phase.Phase, force, keepGoing bool) Status {
	result, err := NewRunner(WithLogger(log.Discard())).Execute(ctx, Request{
		Targets:   targets,
		Phases:    phases,
		Force:     force,
		KeepGoing: keepGoing,
	})
	if err != nil {
		return StatusFailed
	}
	return result.Status()
}

// Plan resolves the graph of every phase without executing anything.
func Plan(targets []target.Target, phases []phase.Phase) ([]*Graph, error) {
	graphs := make([]*Graph, len(phases))
	for i, p := range phases {
		g, err := BuildGraph(targets, p)
		if err != nil {
			return nil, err
		}
		graphs[i] = g
	}
	return graphs, nil
}

// Execute runs req. An error is returned only when a phase graph cannot be
// resolved, in which case nothing was executed. Target failures are reported
// in the result.
func (r *Runner) Execute(ctx context.Context, req Request) (*Result, error) {
	graphs, err := Plan(req.Targets, req.Phases)
	if err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = log.ContextWithRunID(ctx, runID)

	result := newResult(runID, req.Phases)
	result.Start = r.now()

	st := &runState{
		req:     req,
		tainted: make(map[target.Identifier]bool),
	}

	r.emit(func(l Listener) {
		l.RunStarted(ctx, RunInfo{
			RunID:       runID,
			Phases:      result.Phases,
			Targets:     len(req.Targets),
			Force:       req.Force,
			KeepGoing:   req.KeepGoing,
			Parallelism: r.parallelism,
			Start:       result.Start,
		})
	})

	for _, g := range graphs {
		pr := r.newPhaseRun(g, st)
		r.emit(func(l Listener) { l.PhaseStarted(ctx, g.Phase(), g) })

		if r.parallelism > 1 {
			pr.runParallel(ctx)
		} else {
			pr.runSequential(ctx)
		}

		result.byPhase[g.Phase()] = pr.records
		status := result.PhaseStatus(g.Phase())
		r.emit(func(l Listener) { l.PhaseFinished(ctx, g.Phase(), status) })
	}

	result.End = r.now()
	r.emit(func(l Listener) { l.RunFinished(ctx, result) })
	return result, nil
}

func (r *Runner) emit(fn func(Listener)) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	fn(r.listener)
}

// runState is shared by the phases of one run.
type runState struct {
	req Request

	mu         sync.Mutex
	stopped    bool
	stopReason string
	stopCause  error
	tainted    map[target.Identifier]bool // failed or aborted in some phase
}

// phaseRun executes the nodes of one graph. records[i] belongs to the i-th
// target in execution order.
type phaseRun struct {
	runner  *Runner
	graph   *Graph
	state   *runState
	records []Record
	slot    map[int]int // node index -> records index
}

func (r *Runner) newPhaseRun(g *Graph, st *runState) *phaseRun {
	pr := &phaseRun{
		runner:  r,
		graph:   g,
		state:   st,
		records: make([]Record, len(g.order)),
		slot:    make(map[int]int, len(g.order)),
	}
	for i, u := range g.order {
		t := g.nodes[u]
		pr.records[i] = Record{
			Target: t.Identifier(),
			Kind:   t.Kind(),
			Phase:  g.Phase(),
			Status: StatusPending,
		}
		pr.slot[u] = i
	}
	return pr
}

func (pr *phaseRun) runSequential(ctx context.Context) {
	for _, u := range pr.graph.order {
		pr.runNode(ctx, u)
	}
}

// runParallel starts one goroutine per node in execution order. Each waits
// for its dependencies to reach a terminal status before deciding what to do,
// so a goroutine only ever waits on goroutines started before it.
func (pr *phaseRun) runParallel(ctx context.Context) {
	done := make([]chan struct{}, len(pr.graph.nodes))
	for i := range done {
		done[i] = make(chan struct{})
	}

	var g errgroup.Group
	g.SetLimit(pr.runner.parallelism)
	for _, u := range pr.graph.order {
		g.Go(func() error {
			defer close(done[u])
			for _, d := range pr.graph.deps[u] {
				<-done[d]
			}
			pr.runNode(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
}

// runNode takes a node from pending to a terminal status.
func (pr *phaseRun) runNode(ctx context.Context, u int) {
	t := pr.graph.nodes[u]
	p := pr.graph.Phase()
	idx := pr.slot[u]

	if abort := pr.checkAbort(ctx, u); abort != nil {
		pr.finish(ctx, idx, StatusAborted, abort, func(rec *Record) {
			now := pr.runner.now()
			rec.Start, rec.End = now, now
		})
		return
	}

	start := pr.runner.now()
	outcome := pr.runTarget(ctx, t, p, idx)

	pr.finish(ctx, idx, outcome.status, outcome.err, func(rec *Record) {
		rec.Dirty = outcome.dirty
		rec.Forced = pr.state.req.Force
		rec.Start = start
		rec.End = pr.runner.now()
		rec.Duration = rec.End.Sub(rec.Start)
	})
}

// checkAbort returns the reason the node must not run, if any.
func (pr *phaseRun) checkAbort(ctx context.Context, u int) *AbortError {
	st := pr.state
	t := pr.graph.nodes[u]
	abort := &AbortError{Target: t.Identifier(), Phase: pr.graph.Phase()}

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := ctx.Err(); err != nil && !st.stopped {
		st.stopped = true
		st.stopReason = "run cancelled"
		st.stopCause = err
	}
	if st.stopped {
		abort.Reason, abort.Cause = st.stopReason, st.stopCause
		return abort
	}
	if st.tainted[t.Identifier()] {
		abort.Reason = "target did not complete an earlier phase"
		return abort
	}
	for _, d := range pr.graph.deps[u] {
		dep := pr.records[pr.slot[d]]
		if dep.Status == StatusFailed || dep.Status == StatusAborted {
			abort.Reason = fmt.Sprintf("dependency %s %s", dep.Target, dep.Status)
			abort.Cause = dep.Err
			return abort
		}
	}
	return nil
}

type outcome struct {
	status Status
	dirty  trilean.Trilean
	err    error
}

// runTarget evaluates dirtiness and executes t. Panics are recovered and
// reported as failures.
func (pr *phaseRun) runTarget(ctx context.Context, t target.Target, p phase.Phase, idx int) (out outcome) {
	id := t.Identifier()
	running := false

	defer func() {
		if v := recover(); v != nil {
			pr.runner.logger.Error("target panicked", "target", id.String(), "phase", p.String(), "panic", v)
			if !running {
				pr.setStatus(idx, StatusRunning)
			}
			out = outcome{status: StatusFailed, err: &ExecutionError{Target: id, Phase: p, Err: &PanicError{Value: v}}}
		}
	}()

	run, dirty := decide(ctx, t, p, pr.state.req.Force)
	if !run {
		return outcome{status: StatusSkipped, dirty: dirty}
	}

	pr.setStatus(idx, StatusRunning)
	running = true
	pr.runner.emit(func(l Listener) { l.TargetStarted(ctx, id, p) })

	if err := t.Execute(ctx, p); err != nil {
		return outcome{status: StatusFailed, dirty: dirty, err: &ExecutionError{Target: id, Phase: p, Err: err}}
	}
	return outcome{status: StatusSuccess, dirty: dirty}
}

func (pr *phaseRun) setStatus(idx int, to Status) {
	st := pr.state
	st.mu.Lock()
	defer st.mu.Unlock()

	rec := &pr.records[idx]
	if err := transition(rec.key(), rec.Status, to); err != nil {
		panic(err)
	}
	rec.Status = to
}

// finish moves a record to its terminal status and applies the failure
// policy.
func (pr *phaseRun) finish(ctx context.Context, idx int, to Status, err error, fill func(*Record)) {
	st := pr.state
	st.mu.Lock()
	rec := &pr.records[idx]
	if terr := transition(rec.key(), rec.Status, to); terr != nil {
		st.mu.Unlock()
		panic(terr)
	}
	rec.Status = to
	rec.Err = err
	fill(rec)

	switch to {
	case StatusFailed:
		st.tainted[rec.Target] = true
		if !st.req.KeepGoing && !st.stopped {
			st.stopped = true
			st.stopReason = fmt.Sprintf("%s %s failed", rec.Target, rec.Phase)
			st.stopCause = err
		}
	case StatusAborted:
		st.tainted[rec.Target] = true
	}
	snapshot := *rec
	st.mu.Unlock()

	pr.runner.emit(func(l Listener) { l.TargetFinished(ctx, snapshot) })
}
