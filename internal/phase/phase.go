// Package phase defines the lifecycle phases a target can be driven through
// and how a requested phase expands into the phases that precede it.
package phase

import (
	"fmt"
	"strings"
)

// Phase is a step in a target's lifecycle. Phases are ordered.
type Phase int

const (
	Create Phase = iota
	Migrate
	Build
	Verify
	Truncate
	Destroy
)

var names = [...]string{
	Create:   "create",
	Migrate:  "migrate",
	Build:    "build",
	Verify:   "verify",
	Truncate: "truncate",
	Destroy:  "destroy",
}

// lifecycle is the implied chain of the non-teardown phases.
var lifecycle = []Phase{Create, Migrate, Build, Verify}

// All returns every phase in lifecycle order.
func All() []Phase {
	return []Phase{Create, Migrate, Build, Verify, Truncate, Destroy}
}

func (p Phase) String() string {
	if p.Valid() {
		return names[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	return p >= Create && p <= Destroy
}

// IsTeardown reports whether p removes data rather than producing it.
// Teardown phases are never implied by the lifecycle and run consumers
// before producers.
func (p Phase) IsTeardown() bool {
	return p == Truncate || p == Destroy
}

// Parse returns the phase named s, ignoring case.
func Parse(s string) (Phase, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == name {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q (expected one of %s)", s, strings.Join(names[:], ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Expand returns the phases to execute, in order, when the user requests p.
//
// With noLifecycle only p itself runs. Teardown phases never imply others.
// Otherwise the result is every lifecycle phase up to and including p, so a
// build also creates and migrates.
func Expand(p Phase, noLifecycle bool) []Phase {
	if noLifecycle || p.IsTeardown() {
		return []Phase{p}
	}
	for i, lp := range lifecycle {
		if lp == p {
			return append([]Phase(nil), lifecycle[:i+1]...)
		}
	}
	return []Phase{p}
}
