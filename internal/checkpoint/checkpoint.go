// Package checkpoint persists run history: one JSON document per run,
// updated as targets finish so an interrupted run still leaves a record.
package checkpoint

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/flowbuild/internal/errors"
)

// SchemaVersion is written into every state file.
const SchemaVersion = "1.0"

// Run status values. Task statuses use the runner's status names.
const (
	StatusRunning = "running"
)

// State is the persisted record of a run.
type State struct {
	Version     string            `json:"version" yaml:"version"`
	RunID       string            `json:"run_id" yaml:"run_id"`
	Project     string            `json:"project,omitempty" yaml:"project,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Phases      []string          `json:"phases" yaml:"phases"`
	Force       bool              `json:"force,omitempty" yaml:"force,omitempty"`
	KeepGoing   bool              `json:"keep_going,omitempty" yaml:"keep_going,omitempty"`
	Status      string            `json:"status" yaml:"status"`
	StartedAt   time.Time         `json:"started_at" yaml:"started_at"`
	UpdatedAt   time.Time         `json:"updated_at" yaml:"updated_at"`
	FinishedAt  time.Time         `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Tasks       []Task            `json:"tasks" yaml:"tasks"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Task is the state of one (target, phase) pair.
type Task struct {
	Target      string        `json:"target" yaml:"target"`
	Phase       string        `json:"phase" yaml:"phase"`
	Kind        string        `json:"kind,omitempty" yaml:"kind,omitempty"`
	Status      string        `json:"status" yaml:"status"`
	Dirty       string        `json:"dirty,omitempty" yaml:"dirty,omitempty"`
	Forced      bool          `json:"forced,omitempty" yaml:"forced,omitempty"`
	StartedAt   time.Time     `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt time.Time     `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewState creates the state of a run that starts now.
func NewState(runID string, phases []string) *State {
	now := time.Now()
	return &State{
		Version:   SchemaVersion,
		RunID:     runID,
		Phases:    append([]string(nil), phases...),
		Status:    StatusRunning,
		StartedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]string),
	}
}

// UpdateTask replaces the task with the same target and phase, or appends it.
func (s *State) UpdateTask(task Task) {
	s.UpdatedAt = time.Now()
	for i := range s.Tasks {
		if s.Tasks[i].Target == task.Target && s.Tasks[i].Phase == task.Phase {
			s.Tasks[i] = task
			return
		}
	}
	s.Tasks = append(s.Tasks, task)
}

// Task returns the task for a target and phase.
func (s *State) Task(target, phase string) (Task, bool) {
	for _, t := range s.Tasks {
		if t.Target == target && t.Phase == phase {
			return t, true
		}
	}
	return Task{}, false
}

// Failed returns the tasks with status "failed".
func (s *State) Failed() []Task {
	var out []Task
	for _, t := range s.Tasks {
		if t.Status == "failed" {
			out = append(out, t)
		}
	}
	return out
}

// Counts returns the number of tasks per status.
func (s *State) Counts() map[string]int {
	counts := make(map[string]int)
	for _, t := range s.Tasks {
		counts[t.Status]++
	}
	return counts
}

// Duration is the wall time of a finished run, or the time until the last
// update for a run that never finished.
func (s *State) Duration() time.Duration {
	if !s.FinishedAt.IsZero() {
		return s.FinishedAt.Sub(s.StartedAt)
	}
	return s.UpdatedAt.Sub(s.StartedAt)
}

// SetMetadata sets a metadata key.
func (s *State) SetMetadata(key, value string) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]string)
	}
	s.Metadata[key] = value
}

// Manager stores states as <dir>/<run id>.json.
type Manager struct {
	dir string
}

// NewManager creates a manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the history directory.
func (m *Manager) Dir() string {
	return m.dir
}

func (m *Manager) path(runID string) string {
	return filepath.Join(m.dir, runID+".json")
}

// Save writes the state atomically.
func (m *Manager) Save(state *State) error {
	if state == nil {
		return fmt.Errorf("run state is nil")
	}
	if state.RunID == "" {
		return fmt.Errorf("run state has no id")
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, fmt.Sprintf("create history directory %s", m.dir), err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	tmp, err := os.CreateTemp(m.dir, "."+state.RunID+"-*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write run state", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write run state", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write run state", err)
	}
	if err := os.Rename(tmp.Name(), m.path(state.RunID)); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write run state", err)
	}
	return nil
}

// Load reads the state of a run. A unique prefix of the run id is accepted.
func (m *Manager) Load(runID string) (*State, error) {
	id, err := m.resolve(runID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(m.path(id))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, notFound(runID)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("read run %s", id), err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &state, nil
}

func (m *Manager) resolve(runID string) (string, error) {
	if runID == "" {
		return "", notFound(runID)
	}
	if m.Exists(runID) {
		return runID, nil
	}

	ids, err := m.ids()
	if err != nil {
		return "", err
	}
	var match string
	for _, id := range ids {
		if strings.HasPrefix(id, runID) {
			if match != "" {
				return "", errors.New(errors.ErrCodeRunHistoryNotFound, fmt.Sprintf("run id prefix %q is ambiguous", runID)).
					WithSuggestion("Use more characters of the run id")
			}
			match = id
		}
	}
	if match == "" {
		return "", notFound(runID)
	}
	return match, nil
}

func notFound(runID string) error {
	return errors.New(errors.ErrCodeRunHistoryNotFound, fmt.Sprintf("run not found: %s", runID)).
		WithSuggestion("Run 'flowbuild history' to list recorded runs")
}

// Exists reports whether a state file exists for the run id.
func (m *Manager) Exists(runID string) bool {
	_, err := os.Stat(m.path(runID))
	return err == nil
}

// Delete removes the state of a run.
func (m *Manager) Delete(runID string) error {
	if err := os.Remove(m.path(runID)); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}

func (m *Manager) ids() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("read history directory %s", m.dir), err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// List returns all recorded runs, newest first. Unreadable files are skipped.
func (m *Manager) List() ([]*State, error) {
	ids, err := m.ids()
	if err != nil {
		return nil, err
	}

	states := make([]*State, 0, len(ids))
	for _, id := range ids {
		st, err := m.Load(id)
		if err != nil {
			continue
		}
		states = append(states, st)
	}

	sort.SliceStable(states, func(i, j int) bool {
		return states[i].StartedAt.After(states[j].StartedAt)
	})
	return states, nil
}

// Prune keeps the newest keep runs and deletes the rest.
func (m *Manager) Prune(keep int) (int, error) {
	states, err := m.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := keep; i < len(states); i++ {
		if err := m.Delete(states[i].RunID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
