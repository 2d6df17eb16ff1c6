package execution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/resource"
	"github.com/felixgeelhaar/flowbuild/internal/target"
)

var (
	// ErrCycleDetected matches every CycleError.
	ErrCycleDetected = errors.New("dependency cycle detected")
	// ErrAmbiguousProvider matches every AmbiguousProviderError.
	ErrAmbiguousProvider = errors.New("ambiguous resource provider")
	// ErrTargetExecution matches every ExecutionError.
	ErrTargetExecution = errors.New("target execution failed")
	// ErrVerificationFailed matches verification failures reported by targets.
	ErrVerificationFailed = target.ErrVerificationFailed
	// ErrAborted matches every AbortError.
	ErrAborted = errors.New("aborted")
	// ErrDuplicateTarget is returned when two targets share an identifier.
	ErrDuplicateTarget = errors.New("duplicate target")
)

// VerificationError is the error targets return from a failed VERIFY.
type VerificationError = target.VerificationError

// CycleError reports targets that depend on each other. Cycle lists the
// targets along the cycle; the first element is repeated at the end.
type CycleError struct {
	Phase phase.Phase
	Cycle []target.Identifier
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		parts[i] = id.String()
	}
	return fmt.Sprintf("%s in phase %s: %s", ErrCycleDetected, e.Phase, strings.Join(parts, " -> "))
}

func (e *CycleError) Is(err error) bool { return err == ErrCycleDetected }

// AmbiguousProviderError reports a resource provided by two targets in the
// same phase.
type AmbiguousProviderError struct {
	Phase    phase.Phase
	Resource resource.Identifier
	First    target.Identifier
	Second   target.Identifier
}

func (e *AmbiguousProviderError) Error() string {
	return fmt.Sprintf("%s in phase %s: %s is provided by both %s and %s",
		ErrAmbiguousProvider, e.Phase, e.Resource, e.First, e.Second)
}

func (e *AmbiguousProviderError) Is(err error) bool { return err == ErrAmbiguousProvider }

// ExecutionError wraps the error a target returned from Execute.
type ExecutionError struct {
	Target target.Identifier
	Phase  phase.Phase
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Target, e.Phase, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(err error) bool { return err == ErrTargetExecution }

// AbortError explains why a pair was never executed.
type AbortError struct {
	Target target.Identifier
	Phase  phase.Phase
	Reason string
	Cause  error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s %s aborted: %s", e.Target, e.Phase, e.Reason)
}

func (e *AbortError) Unwrap() error { return e.Cause }

func (e *AbortError) Is(err error) bool { return err == ErrAborted }

// PanicError is recorded when a target panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
