package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Project errors (PROJECT-001 to PROJECT-099)
	ErrCodeProjectNotFound      ErrorCode = "PROJECT-001"
	ErrCodeProjectInvalid       ErrorCode = "PROJECT-002"
	ErrCodeProjectUnmarshal     ErrorCode = "PROJECT-003"
	ErrCodeProjectUnknownTarget ErrorCode = "PROJECT-004"
	ErrCodeProjectUnknownKind   ErrorCode = "PROJECT-005"
	ErrCodeProjectUnknownJob    ErrorCode = "PROJECT-006"

	// Graph errors (GRAPH-001 to GRAPH-099)
	ErrCodeGraphCycle             ErrorCode = "GRAPH-001"
	ErrCodeGraphAmbiguousProvider ErrorCode = "GRAPH-002"

	// Run errors (RUN-001 to RUN-099)
	ErrCodeRunTargetFailed       ErrorCode = "RUN-001"
	ErrCodeRunVerificationFailed ErrorCode = "RUN-002"
	ErrCodeRunAborted            ErrorCode = "RUN-003"
	ErrCodeRunHistoryNotFound    ErrorCode = "RUN-004"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid   ErrorCode = "CONFIG-001"
	ErrCodeConfigUnmarshal ErrorCode = "CONFIG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
)

// FlowError represents an enhanced error with code, suggestions, and documentation
type FlowError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *FlowError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FlowError) Unwrap() error {
	return e.Cause
}

// New creates a new FlowError
func New(code ErrorCode, message string) *FlowError {
	return &FlowError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new FlowError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *FlowError {
	return &FlowError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *FlowError) WithSuggestion(suggestion string) *FlowError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *FlowError) WithSuggestions(suggestions ...string) *FlowError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *FlowError) WithDocs(url string) *FlowError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the first FlowError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var flowErr *FlowError
	if stderrors.As(err, &flowErr) {
		return flowErr.Code
	}
	return ""
}

// Category returns the prefix of a code, e.g. "GRAPH" for "GRAPH-001".
func (c ErrorCode) Category() string {
	s := string(c)
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}

// Common error constructors for frequently used errors

// NewProjectNotFoundError creates a project file not found error
func NewProjectNotFoundError(path string) *FlowError {
	return New(ErrCodeProjectNotFound, fmt.Sprintf("project file not found: %s", path)).
		WithSuggestion("Pass the project file with --project <file>").
		WithSuggestion("Check if the file path is correct").
		WithDocs("https://github.com/felixgeelhaar/flowbuild#project-files")
}

// NewProjectInvalidError creates a project validation error
func NewProjectInvalidError(details string) *FlowError {
	return New(ErrCodeProjectInvalid, fmt.Sprintf("invalid project: %s", details)).
		WithSuggestion("Check target kinds, phases and resource declarations").
		WithDocs("https://github.com/felixgeelhaar/flowbuild#project-files")
}

// NewUnknownTargetError creates an error for a target name missing from the project
func NewUnknownTargetError(name string, available []string) *FlowError {
	err := New(ErrCodeProjectUnknownTarget, fmt.Sprintf("unknown target: %s", name))
	if len(available) > 0 {
		err.WithSuggestion(fmt.Sprintf("Available targets: %s", strings.Join(available, ", ")))
	}
	return err.WithSuggestion("Run 'flowbuild graph build' to list the targets of the project")
}

// NewUnknownJobError creates an error for a job name missing from the project
func NewUnknownJobError(name string) *FlowError {
	return New(ErrCodeProjectUnknownJob, fmt.Sprintf("unknown job: %s", name)).
		WithSuggestion("Check the jobs section of the project file")
}

// NewCycleError creates a dependency cycle error
func NewCycleError(cause error) *FlowError {
	return Wrap(ErrCodeGraphCycle, "target dependencies contain a cycle", cause).
		WithSuggestion("Break the cycle by removing one of the requires/provides declarations").
		WithSuggestion("Inspect the order with 'flowbuild graph <phase> --mermaid'").
		WithDocs("https://github.com/felixgeelhaar/flowbuild#dependencies")
}

// NewAmbiguousProviderError creates an error for a resource provided twice
func NewAmbiguousProviderError(cause error) *FlowError {
	return Wrap(ErrCodeGraphAmbiguousProvider, "resource is provided by more than one target", cause).
		WithSuggestion("Make sure every resource has exactly one producing target per phase").
		WithDocs("https://github.com/felixgeelhaar/flowbuild#dependencies")
}

// NewRunFailedError creates an error summarising a failed run
func NewRunFailedError(failed int, cause error) *FlowError {
	return Wrap(ErrCodeRunTargetFailed, fmt.Sprintf("run completed with %d failed target(s)", failed), cause).
		WithSuggestion("Re-run with --keep-going to build unaffected targets").
		WithSuggestion("Use 'flowbuild history' to inspect the failed run")
}

// NewVerificationFailedError creates an error for failed VERIFY phases
func NewVerificationFailedError(cause error) *FlowError {
	return Wrap(ErrCodeRunVerificationFailed, "verification failed", cause).
		WithSuggestion("Rebuild the affected targets with 'flowbuild build --force <target>'")
}

// NewRunAbortedError creates an error for an aborted run
func NewRunAbortedError(cause error) *FlowError {
	return Wrap(ErrCodeRunAborted, "run aborted", cause)
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *FlowError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *FlowError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Check flowbuild.yaml and FLOWBUILD_* environment variables")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(code ErrorCode, path string, format string, cause error) *FlowError {
	return Wrap(code, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
