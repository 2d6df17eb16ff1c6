// Package target defines the contract between buildable units of work and
// the execution engine, together with the registry of target kinds.
package target

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/resource"
	"github.com/felixgeelhaar/flowbuild/internal/trilean"
)

var (
	// ErrUnsupportedPhase is returned when a target is asked to run a phase
	// it does not declare.
	ErrUnsupportedPhase = errors.New("unsupported phase")

	// ErrVerificationFailed matches every VerificationError.
	ErrVerificationFailed = errors.New("verification failed")
)

// Identifier names a target within a project.
type Identifier struct {
	Project string
	Name    string
}

func (id Identifier) String() string {
	if id.Project == "" {
		return id.Name
	}
	return id.Project + "/" + id.Name
}

// Target is a unit of buildable work.
//
// Requires and Provides are only consulted for phases in Phases(). Dirty must
// not modify anything; Execute must be safe to call again after a failure.
type Target interface {
	Identifier() Identifier
	Kind() string
	Phases() phase.Set
	Requires(p phase.Phase) []resource.Identifier
	Provides(p phase.Phase) []resource.Identifier
	Dirty(ctx context.Context, p phase.Phase) trilean.Trilean
	Execute(ctx context.Context, p phase.Phase) error
}

// Handler has one entry point per phase. Kinds implement it and forward
// Execute to Dispatch.
type Handler interface {
	Create(ctx context.Context) error
	Migrate(ctx context.Context) error
	Build(ctx context.Context) error
	Verify(ctx context.Context) error
	Truncate(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// Dispatch calls the entry point of h for p.
func Dispatch(ctx context.Context, h Handler, p phase.Phase) error {
	switch p {
	case phase.Create:
		return h.Create(ctx)
	case phase.Migrate:
		return h.Migrate(ctx)
	case phase.Build:
		return h.Build(ctx)
	case phase.Verify:
		return h.Verify(ctx)
	case phase.Truncate:
		return h.Truncate(ctx)
	case phase.Destroy:
		return h.Destroy(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPhase, p)
	}
}

// NopHandler implements every entry point as a no-op. Embed it and override
// the phases a kind cares about.
type NopHandler struct{}

func (NopHandler) Create(context.Context) error   { return nil }
func (NopHandler) Migrate(context.Context) error  { return nil }
func (NopHandler) Build(context.Context) error    { return nil }
func (NopHandler) Verify(context.Context) error   { return nil }
func (NopHandler) Truncate(context.Context) error { return nil }
func (NopHandler) Destroy(context.Context) error  { return nil }

// VerificationError reports that a target's output does not hold after it
// was built. It matches ErrVerificationFailed with errors.Is.
type VerificationError struct {
	Target Identifier
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	msg := fmt.Sprintf("verification of %s failed: %s", e.Target, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VerificationError) Unwrap() error { return e.Err }

func (e *VerificationError) Is(target error) bool {
	return target == ErrVerificationFailed
}
