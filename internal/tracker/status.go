package tracker

import "fmt"

// Status is a job's position in the application lifecycle.
type Status string

const (
	StatusNew           Status = "new"
	StatusFilteredOut   Status = "filtered_out"
	StatusScored        Status = "scored"
	StatusResumePending Status = "resume_pending"
	StatusResumeReady   Status = "resume_ready"
	StatusApplied       Status = "applied"
	StatusRejected      Status = "rejected_by_reviewer"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusNew:           {StatusFilteredOut, StatusScored},
	StatusScored:        {StatusResumePending, StatusRejected},
	StatusResumePending: {StatusResumeReady, StatusRejected},
	StatusResumeReady:   {StatusApplied, StatusRejected},
	// filtered_out, applied and rejected_by_reviewer are terminal
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusNew, StatusFilteredOut, StatusScored, StatusResumePending, StatusResumeReady, StatusApplied, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTerminal reports whether the status has no outgoing transitions.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports a transition the state machine forbids, or
// one whose preconditions are not met.
type InvalidTransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("transition %s -> %s is not allowed: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("transition %s -> %s is not allowed", e.From, e.To)
}
