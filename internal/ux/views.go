package ux

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/felixgeelhaar/flowbuild/internal/checkpoint"
	"github.com/felixgeelhaar/flowbuild/internal/execution"
	"github.com/felixgeelhaar/flowbuild/internal/resource"
)

// RunView is the machine-readable summary of a finished run.
type RunView struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	Project    string         `json:"project,omitempty" yaml:"project,omitempty"`
	Status     string         `json:"status" yaml:"status"`
	Phases     []string       `json:"phases" yaml:"phases"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	DurationMS int64          `json:"duration_ms" yaml:"duration_ms"`
	Counts     map[string]int `json:"counts" yaml:"counts"`
	Targets    []TargetView   `json:"targets" yaml:"targets"`
}

// TargetView is one (target, phase) outcome.
type TargetView struct {
	Target     string `json:"target" yaml:"target"`
	Kind       string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Phase      string `json:"phase" yaml:"phase"`
	Status     string `json:"status" yaml:"status"`
	Dirty      string `json:"dirty,omitempty" yaml:"dirty,omitempty"`
	Forced     bool   `json:"forced,omitempty" yaml:"forced,omitempty"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewRunView builds the summary of result.
func NewRunView(project string, result *execution.Result) RunView {
	v := RunView{
		RunID:      result.RunID,
		Project:    project,
		Status:     string(result.Status()),
		StartedAt:  result.Start,
		DurationMS: result.Duration().Milliseconds(),
		Counts:     make(map[string]int),
	}
	for _, p := range result.Phases {
		v.Phases = append(v.Phases, p.String())
	}
	for s, n := range result.Counts() {
		v.Counts[string(s)] = n
	}
	for _, rec := range result.All() {
		task := checkpoint.TaskFromRecord(rec)
		v.Targets = append(v.Targets, TargetView{
			Target:     task.Target,
			Kind:       task.Kind,
			Phase:      task.Phase,
			Status:     task.Status,
			Dirty:      task.Dirty,
			Forced:     task.Forced,
			DurationMS: task.Duration.Milliseconds(),
			Error:      task.Error,
		})
	}
	return v
}

// PlanView is the resolved execution order of one or more phases.
type PlanView struct {
	Phases []PhasePlan `json:"phases" yaml:"phases"`
}

// PhasePlan lists the targets of a phase in execution order.
type PhasePlan struct {
	Phase   string       `json:"phase" yaml:"phase"`
	Targets []PlanTarget `json:"targets" yaml:"targets"`
}

// PlanTarget is a node of a phase graph.
type PlanTarget struct {
	Target    string   `json:"target" yaml:"target"`
	Kind      string   `json:"kind" yaml:"kind"`
	Level     int      `json:"level" yaml:"level"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Requires  []string `json:"requires,omitempty" yaml:"requires,omitempty"`
	Provides  []string `json:"provides,omitempty" yaml:"provides,omitempty"`
}

// NewPlanView describes graphs.
func NewPlanView(graphs []*execution.Graph) PlanView {
	var v PlanView
	for _, g := range graphs {
		p := g.Phase()
		level := make(map[string]int)
		for i, lvl := range g.Levels() {
			for _, t := range lvl {
				level[t.Identifier().String()] = i
			}
		}

		pp := PhasePlan{Phase: p.String(), Targets: []PlanTarget{}}
		for _, t := range g.Order() {
			id := t.Identifier()
			pt := PlanTarget{
				Target:   id.String(),
				Kind:     t.Kind(),
				Level:    level[id.String()],
				Requires: resourceStrings(t.Requires(p)),
				Provides: resourceStrings(t.Provides(p)),
			}
			for _, d := range g.Dependencies(id) {
				pt.DependsOn = append(pt.DependsOn, d.Identifier().String())
			}
			pp.Targets = append(pp.Targets, pt)
		}
		v.Phases = append(v.Phases, pp)
	}
	return v
}

func resourceStrings(ids []resource.Identifier) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// WriteText prints each phase as a numbered list.
func (v PlanView) WriteText(w io.Writer) error {
	for i, pp := range v.Phases {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s\n", strings.ToUpper(pp.Phase))
		if len(pp.Targets) == 0 {
			fmt.Fprintln(w, "  (no targets)")
			continue
		}
		for n, t := range pp.Targets {
			fmt.Fprintf(w, "  %d. %s (%s)\n", n+1, t.Target, t.Kind)
			if len(t.DependsOn) > 0 {
				fmt.Fprintf(w, "     after: %s\n", strings.Join(t.DependsOn, ", "))
			}
		}
	}
	return nil
}

// HistoryEntry summarises a recorded run.
type HistoryEntry struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Project    string    `json:"project,omitempty" yaml:"project,omitempty"`
	Status     string    `json:"status" yaml:"status"`
	Phases     []string  `json:"phases" yaml:"phases"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	DurationMS int64     `json:"duration_ms" yaml:"duration_ms"`
	Targets    int       `json:"targets" yaml:"targets"`
	Failed     int       `json:"failed" yaml:"failed"`
}

// HistoryView lists recorded runs, newest first.
type HistoryView struct {
	Runs []HistoryEntry `json:"runs" yaml:"runs"`
}

// NewHistoryView summarises states.
func NewHistoryView(states []*checkpoint.State) HistoryView {
	v := HistoryView{Runs: []HistoryEntry{}}
	for _, st := range states {
		v.Runs = append(v.Runs, HistoryEntry{
			RunID:      st.RunID,
			Project:    st.Project,
			Status:     st.Status,
			Phases:     st.Phases,
			StartedAt:  st.StartedAt,
			DurationMS: st.Duration().Milliseconds(),
			Targets:    len(st.Tasks),
			Failed:     len(st.Failed()),
		})
	}
	return v
}

// WriteText prints the runs as a table.
func (v HistoryView) WriteText(w io.Writer) error {
	if len(v.Runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	t := newTable("RUN", "STARTED", "PHASES", "STATUS", "TASKS", "FAILED", "DURATION")
	for _, r := range v.Runs {
		t.Row(
			shortID(r.RunID),
			r.StartedAt.Local().Format(time.DateTime),
			strings.Join(r.Phases, ","),
			r.Status,
			fmt.Sprint(r.Targets),
			fmt.Sprint(r.Failed),
			formatMillis(r.DurationMS),
		)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// RunDetailView is a single recorded run.
type RunDetailView struct {
	*checkpoint.State
}

// WriteText prints the run header and one row per task.
func (v RunDetailView) WriteText(w io.Writer) error {
	st := v.State
	fmt.Fprintf(w, "Run:       %s\n", st.RunID)
	if st.Project != "" {
		fmt.Fprintf(w, "Project:   %s\n", st.Project)
	}
	fmt.Fprintf(w, "Phases:    %s\n", strings.Join(st.Phases, " → "))
	fmt.Fprintf(w, "Status:    %s\n", st.Status)
	fmt.Fprintf(w, "Started:   %s\n", st.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Duration:  %s\n", formatMillis(st.Duration().Milliseconds()))

	var flags []string
	if st.Force {
		flags = append(flags, "force")
	}
	if st.KeepGoing {
		flags = append(flags, "keep-going")
	}
	if len(flags) > 0 {
		fmt.Fprintf(w, "Flags:     %s\n", strings.Join(flags, ", "))
	}

	counts := st.Counts()
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = fmt.Sprintf("%s=%d", s, counts[s])
	}
	fmt.Fprintf(w, "Tasks:     %s\n\n", strings.Join(parts, " "))

	if len(st.Tasks) == 0 {
		return nil
	}
	t := newTable("PHASE", "TARGET", "STATUS", "DIRTY", "DURATION", "ERROR")
	for _, task := range st.Tasks {
		t.Row(task.Phase, task.Target, task.Status, task.Dirty, formatMillis(task.Duration.Milliseconds()), firstLine(task.Error))
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
