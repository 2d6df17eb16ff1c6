package checkpoint

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/flowbuild/internal/execution"
	"github.com/felixgeelhaar/flowbuild/internal/log"
	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/target"
)

// Recorder is an execution.Listener that saves the run state after every
// finished target and once more when the run ends.
type Recorder struct {
	execution.NopListener

	manager     *Manager
	project     string
	fingerprint string
	logger      *log.Logger

	mu    sync.Mutex
	state *State
	err   error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithProject records the project name and fingerprint in every state.
func WithProject(name, fingerprint string) RecorderOption {
	return func(r *Recorder) {
		r.project = name
		r.fingerprint = fingerprint
	}
}

// WithLogger sets the logger used for save failures.
func WithLogger(l *log.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = l
	}
}

// NewRecorder creates a recorder saving through m.
func NewRecorder(m *Manager, opts ...RecorderOption) *Recorder {
	r := &Recorder{manager: m}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.DefaultLogger()
	}
	return r
}

// State returns the state of the current or last run.
func (r *Recorder) State() *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the first save error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) RunStarted(ctx context.Context, info execution.RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := NewState(info.RunID, phaseNames(info.Phases))
	st.Project = r.project
	st.Fingerprint = r.fingerprint
	st.Force = info.Force
	st.KeepGoing = info.KeepGoing
	if !info.Start.IsZero() {
		st.StartedAt = info.Start
		st.UpdatedAt = info.Start
	}
	r.state = st
	r.save(ctx)
}

func (r *Recorder) TargetStarted(_ context.Context, id target.Identifier, p phase.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return
	}
	r.state.UpdateTask(Task{
		Target: id.String(),
		Phase:  p.String(),
		Status: string(execution.StatusRunning),
	})
}

func (r *Recorder) TargetFinished(ctx context.Context, rec execution.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return
	}
	r.state.UpdateTask(TaskFromRecord(rec))
	r.save(ctx)
}

func (r *Recorder) RunFinished(ctx context.Context, result *execution.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return
	}
	for _, rec := range result.All() {
		r.state.UpdateTask(TaskFromRecord(rec))
	}
	r.state.Status = string(result.Status())
	r.state.FinishedAt = result.End
	r.save(ctx)
}

// save must be called with mu held.
func (r *Recorder) save(ctx context.Context) {
	if err := r.manager.Save(r.state); err != nil {
		if r.err == nil {
			r.err = err
		}
		r.logger.WithContext(ctx).WithError(err).Warn("failed to save run history",
			"dir", r.manager.Dir())
	}
}

// TaskFromRecord converts a runner record into a persisted task.
func TaskFromRecord(rec execution.Record) Task {
	t := Task{
		Target:      rec.Target.String(),
		Phase:       rec.Phase.String(),
		Kind:        rec.Kind,
		Status:      string(rec.Status),
		Forced:      rec.Forced,
		StartedAt:   rec.Start,
		CompletedAt: rec.End,
		Duration:    rec.Duration,
	}
	if rec.Status == execution.StatusSuccess || rec.Status == execution.StatusSkipped {
		t.Dirty = rec.Dirty.String()
	}
	if rec.Err != nil {
		t.Error = rec.Err.Error()
	}
	return t
}

func phaseNames(phases []phase.Phase) []string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.String()
	}
	return names
}
