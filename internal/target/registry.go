package target

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/flowbuild/internal/log"
	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/resource"
)

var (
	// ErrUnknownKind is returned by Registry.Create for unregistered kinds.
	ErrUnknownKind = errors.New("unknown target kind")
	// ErrDuplicateKind is returned when a kind is registered twice.
	ErrDuplicateKind = errors.New("target kind already registered")
)

// Definition is everything a factory needs to instantiate a target.
type Definition struct {
	ID       Identifier
	Kind     string
	Phases   phase.Set // empty means the kind's default
	Requires []resource.Identifier
	Provides []resource.Identifier
	Dir      string     // base directory for relative paths
	Config   *yaml.Node // kind-specific properties
	Logger   *log.Logger
}

// Decode decodes the kind-specific properties into v.
func (d Definition) Decode(v any) error {
	if d.Config == nil || d.Config.Kind == 0 {
		return nil
	}
	if err := d.Config.Decode(v); err != nil {
		return fmt.Errorf("target %s: decode %s properties: %w", d.ID, d.Kind, err)
	}
	return nil
}

// PhasesOr returns the declared phases, or defaults when none were declared.
func (d Definition) PhasesOr(defaults phase.Set) phase.Set {
	if d.Phases.IsEmpty() {
		return defaults
	}
	return d.Phases
}

func (d Definition) logger() *log.Logger {
	l := d.Logger
	if l == nil {
		l = log.DefaultLogger()
	}
	return l.With("target", d.ID.String(), "kind", d.Kind)
}

// Factory creates a target from its definition.
type Factory func(Definition) (Target, error)

// Registry maps kind names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Builtins returns a registry holding the null, file and command kinds.
func Builtins() *Registry {
	r := NewRegistry()
	r.MustRegister(KindNull, NewNull)
	r.MustRegister(KindFile, NewFile)
	r.MustRegister(KindCommand, NewCommand)
	return r
}

// Register adds a factory for kind.
func (r *Registry) Register(kind string, f Factory) error {
	if kind == "" {
		return errors.New("target kind must not be empty")
	}
	if f == nil {
		return fmt.Errorf("nil factory for target kind %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, kind)
	}
	r.factories[kind] = f
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(kind string, f Factory) {
	if err := r.Register(kind, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered for kind.
func (r *Registry) Lookup(kind string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[kind]
	return f, ok
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Create instantiates def through the factory of its kind.
func (r *Registry) Create(def Definition) (Target, error) {
	f, ok := r.Lookup(def.Kind)
	if !ok {
		return nil, fmt.Errorf("%w %q for target %s (registered: %v)", ErrUnknownKind, def.Kind, def.ID, r.Kinds())
	}
	t, err := f(def)
	if err != nil {
		return nil, fmt.Errorf("create target %s: %w", def.ID, err)
	}
	return t, nil
}
