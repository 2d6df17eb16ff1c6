package execution

import (
	"context"
	"time"

	"github.com/felixgeelhaar/flowbuild/internal/log"
	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/target"
)

// RunInfo describes a run that is about to start.
type RunInfo struct {
	RunID       string
	Phases      []phase.Phase
	Targets     int
	Force       bool
	KeepGoing   bool
	Parallelism int
	Start       time.Time
}

// Listener observes a run. The runner serializes calls, so implementations
// need no locking of their own.
type Listener interface {
	RunStarted(ctx context.Context, info RunInfo)
	PhaseStarted(ctx context.Context, p phase.Phase, g *Graph)
	TargetStarted(ctx context.Context, id target.Identifier, p phase.Phase)
	TargetFinished(ctx context.Context, rec Record)
	PhaseFinished(ctx context.Context, p phase.Phase, status Status)
	RunFinished(ctx context.Context, result *Result)
}

// NopListener ignores every event. Embed it to implement a subset.
type NopListener struct{}

func (NopListener) RunStarted(context.Context, RunInfo)                           {}
func (NopListener) PhaseStarted(context.Context, phase.Phase, *Graph)             {}
func (NopListener) TargetStarted(context.Context, target.Identifier, phase.Phase) {}
func (NopListener) TargetFinished(context.Context, Record)                        {}
func (NopListener) PhaseFinished(context.Context, phase.Phase, Status)            {}
func (NopListener) RunFinished(context.Context, *Result)                          {}

// MultiListener forwards events to each listener in order.
type MultiListener []Listener

func (m MultiListener) RunStarted(ctx context.Context, info RunInfo) {
	for _, l := range m {
		l.RunStarted(ctx, info)
	}
}

func (m MultiListener) PhaseStarted(ctx context.Context, p phase.Phase, g *Graph) {
	for _, l := range m {
		l.PhaseStarted(ctx, p, g)
	}
}

func (m MultiListener) TargetStarted(ctx context.Context, id target.Identifier, p phase.Phase) {
	for _, l := range m {
		l.TargetStarted(ctx, id, p)
	}
}

func (m MultiListener) TargetFinished(ctx context.Context, rec Record) {
	for _, l := range m {
		l.TargetFinished(ctx, rec)
	}
}

func (m MultiListener) PhaseFinished(ctx context.Context, p phase.Phase, status Status) {
	for _, l := range m {
		l.PhaseFinished(ctx, p, status)
	}
}

func (m MultiListener) RunFinished(ctx context.Context, result *Result) {
	for _, l := range m {
		l.RunFinished(ctx, result)
	}
}

// LogListener writes structured log lines for a run.
type LogListener struct {
	Logger *log.Logger
}

// NewLogListener returns a listener logging to logger.
func NewLogListener(logger *log.Logger) *LogListener {
	return &LogListener{Logger: logger}
}

func (l *LogListener) logger(ctx context.Context) *log.Logger {
	return l.Logger.WithContext(ctx)
}

func (l *LogListener) RunStarted(ctx context.Context, info RunInfo) {
	phases := make([]string, len(info.Phases))
	for i, p := range info.Phases {
		phases[i] = p.String()
	}
	l.logger(ctx).Info("run started",
		"phases", phases,
		"targets", info.Targets,
		"force", info.Force,
		"keep_going", info.KeepGoing,
		"parallelism", info.Parallelism)
}

func (l *LogListener) PhaseStarted(ctx context.Context, p phase.Phase, g *Graph) {
	l.logger(ctx).Debug("phase started", "phase", p.String(), "targets", g.Len())
}

func (l *LogListener) TargetStarted(ctx context.Context, id target.Identifier, p phase.Phase) {
	l.logger(ctx).Debug("target started", "target", id.String(), "phase", p.String())
}

func (l *LogListener) TargetFinished(ctx context.Context, rec Record) {
	logger := l.logger(ctx).With(
		"target", rec.Target.String(),
		"phase", rec.Phase.String(),
		"status", rec.Status.String(),
		"duration", rec.Duration)

	switch rec.Status {
	case StatusFailed:
		logger.WithError(rec.Err).Error("target failed")
	case StatusAborted:
		logger.WithError(rec.Err).Warn("target aborted")
	case StatusSkipped:
		logger.Debug("target up to date", "dirty", rec.Dirty.String())
	default:
		logger.Info("target finished", "dirty", rec.Dirty.String(), "forced", rec.Forced)
	}
}

func (l *LogListener) PhaseFinished(ctx context.Context, p phase.Phase, status Status) {
	l.logger(ctx).Debug("phase finished", "phase", p.String(), "status", status.String())
}

func (l *LogListener) RunFinished(ctx context.Context, result *Result) {
	counts := result.Counts()
	args := []any{
		"status", result.Status().String(),
		"duration", result.Duration(),
		"success", counts[StatusSuccess],
		"skipped", counts[StatusSkipped],
		"failed", counts[StatusFailed],
		"aborted", counts[StatusAborted],
	}
	if result.Status().IsSuccess() {
		l.logger(ctx).Info("run finished", args...)
		return
	}
	l.logger(ctx).Warn("run finished", args...)
}
