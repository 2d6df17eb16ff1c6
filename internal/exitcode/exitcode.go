package exitcode

import (
	"os"
	"strings"

	flowerrors "github.com/felixgeelhaar/flowbuild/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution (including runs where every target was skipped)
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// BuildFailed indicates at least one target failed or the run was aborted
	BuildFailed = 3

	// GraphInvalid indicates the dependency graph could not be resolved
	GraphInvalid = 4

	// ProjectInvalid indicates the project or configuration file is unusable
	ProjectInvalid = 5

	// Interrupted indicates the run was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch code := flowerrors.CodeOf(err); code.Category() {
	case "RUN":
		return BuildFailed
	case "GRAPH":
		return GraphInvalid
	case "PROJECT", "CONFIG":
		return ProjectInvalid
	case "IO":
		return GeneralError
	}

	errMsg := strings.ToLower(err.Error())

	// Cobra usage errors carry no code
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "invalid argument") || strings.Contains(errMsg, "required flag") {
		return UsageError
	}
	if strings.Contains(errMsg, "accepts") && strings.Contains(errMsg, "arg(s)") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case BuildFailed:
		return "Build failed"
	case GraphInvalid:
		return "Dependency graph invalid"
	case ProjectInvalid:
		return "Project or configuration invalid"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
