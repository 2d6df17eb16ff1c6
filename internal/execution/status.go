package execution

import "fmt"

// Status is the state of one (target, phase) pair or of a whole run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	// StatusSuccess means the target executed and returned no error.
	StatusSuccess Status = "success"
	// StatusSkipped means the target was clean and not forced.
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	// StatusAborted means the target never ran because of an earlier
	// failure or cancellation.
	StatusAborted Status = "aborted"
)

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusSkipped, StatusFailed, StatusAborted:
		return true
	default:
		return false
	}
}

// IsSuccess reports whether s counts as a successful outcome.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess || s == StatusSkipped
}

// CanTransition reports whether a pair may move from one status to another.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusSkipped || to == StatusAborted
	case StatusRunning:
		return to == StatusSuccess || to == StatusFailed
	default:
		return false
	}
}

// transition validates a state change of a pair.
func transition(key pairKey, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition for %s: %s -> %s", key, from, to)
	}
	return nil
}

// Aggregate combines statuses into the status of a run: any failure wins,
// then any abort; a run where everything was skipped is skipped; otherwise
// it succeeded. No statuses at all is a success.
func Aggregate(statuses ...Status) Status {
	if len(statuses) == 0 {
		return StatusSuccess
	}

	var failed, aborted bool
	allSkipped := true
	for _, s := range statuses {
		switch s {
		case StatusFailed:
			failed = true
		case StatusAborted:
			aborted = true
		}
		if s != StatusSkipped {
			allSkipped = false
		}
	}

	switch {
	case failed:
		return StatusFailed
	case aborted:
		return StatusAborted
	case allSkipped:
		return StatusSkipped
	default:
		return StatusSuccess
	}
}
