package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/flowbuild/internal/errors"
	"github.com/felixgeelhaar/flowbuild/internal/execution"
	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/target"
)

// NewRegistry creates a registry holding a fresh Metrics instance.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	return reg, m
}

// WriteTextfile writes every metric of g to path in the text exposition
// format, for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeDirectoryFailed, fmt.Sprintf("create metrics directory %s", dir), err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("write metrics to %s", path), err)
	}
	return nil
}

// RecordError counts a coded error. Errors without a code count as "UNKNOWN".
func (m *Metrics) RecordError(err error, component string) {
	if err == nil {
		return
	}
	code := string(errors.CodeOf(err))
	if code == "" {
		code = "UNKNOWN"
	}
	m.Errors.WithLabelValues(code, component).Inc()
}

// Listener feeds run events into Metrics.
type Listener struct {
	execution.NopListener
	m       *Metrics
	running map[string]bool
}

// NewListener creates an execution.Listener recording into m.
func NewListener(m *Metrics) *Listener {
	return &Listener{m: m, running: make(map[string]bool)}
}

func runningKey(id target.Identifier, p phase.Phase) string {
	return id.String() + "@" + p.String()
}

func (l *Listener) TargetStarted(_ context.Context, id target.Identifier, p phase.Phase) {
	l.running[runningKey(id, p)] = true
	l.m.TargetsInProgress.Inc()
}

func (l *Listener) TargetFinished(_ context.Context, rec execution.Record) {
	p := rec.Phase.String()
	l.m.TargetExecutions.WithLabelValues(p, rec.Kind, string(rec.Status)).Inc()

	// Targets that never started (skipped, aborted, or a dirty check that
	// panicked) have no execution time.
	key := runningKey(rec.Target, rec.Phase)
	if l.running[key] {
		delete(l.running, key)
		l.m.TargetsInProgress.Dec()
		l.m.TargetDuration.WithLabelValues(p, rec.Kind).Observe(rec.Duration.Seconds())
	}

	if rec.Status != execution.StatusAborted {
		l.m.DirtyChecks.WithLabelValues(p, rec.Dirty.String()).Inc()
	}
}

func (l *Listener) PhaseFinished(_ context.Context, p phase.Phase, status execution.Status) {
	l.m.PhaseExecutions.WithLabelValues(p.String(), string(status)).Inc()
}

func (l *Listener) RunFinished(_ context.Context, result *execution.Result) {
	status := result.Status()
	l.m.Runs.WithLabelValues(string(status)).Inc()
	l.m.RunDuration.Observe(result.Duration().Seconds())
	l.m.LastRunTimestamp.Set(float64(result.End.Unix()))
	if status.IsSuccess() {
		l.m.LastRunSuccess.Set(1)
	} else {
		l.m.LastRunSuccess.Set(0)
	}
}
