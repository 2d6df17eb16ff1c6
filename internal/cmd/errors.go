package cmd

import (
	stderrors "errors"

	"github.com/felixgeelhaar/flowbuild/internal/errors"
	"github.com/felixgeelhaar/flowbuild/internal/execution"
)

// planError maps errors from graph resolution to coded errors.
func planError(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, execution.ErrCycleDetected):
		return errors.NewCycleError(err)
	case stderrors.Is(err, execution.ErrAmbiguousProvider):
		return errors.NewAmbiguousProviderError(err)
	case stderrors.Is(err, execution.ErrDuplicateTarget):
		return errors.NewProjectInvalidError(err.Error())
	default:
		return err
	}
}

// runError turns a finished run into the error the command returns.
// SUCCESS and SKIPPED runs return nil.
func runError(result *execution.Result) error {
	switch result.Status() {
	case execution.StatusFailed:
		failures := result.Failures()
		verification := true
		for _, rec := range failures {
			if !stderrors.Is(rec.Err, execution.ErrVerificationFailed) {
				verification = false
				break
			}
		}
		if verification {
			return errors.NewVerificationFailedError(result.Err())
		}
		return errors.NewRunFailedError(len(failures), result.Err())

	case execution.StatusAborted:
		for _, rec := range result.All() {
			if rec.Status == execution.StatusAborted {
				return errors.NewRunAbortedError(rec.Err)
			}
		}
		return errors.NewRunAbortedError(nil)

	default:
		return nil
	}
}
