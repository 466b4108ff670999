package changeorder

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusDraft        Status = "draft"
	StatusSubmitted    Status = "submitted"
	StatusUnderReview  Status = "under_review"
	StatusApproved     Status = "approved"
	StatusImplementing Status = "implementing"
	StatusCompleted    Status = "completed"
	StatusRejected     Status = "rejected"
)

// transitions is the closed graph of legal status moves. completed is
// terminal; rejected allows resubmission.
var transitions = map[Status][]Status{
	StatusDraft:        {StatusSubmitted},
	StatusSubmitted:    {StatusUnderReview, StatusRejected},
	StatusUnderReview:  {StatusApproved, StatusRejected, StatusSubmitted},
	StatusApproved:     {StatusImplementing, StatusRejected},
	StatusImplementing: {StatusCompleted, StatusApproved},
	StatusCompleted:    {},
	StatusRejected:     {StatusSubmitted},
}

// majorStatuses are the targets whose entry creates a new version even
// without content changes.
var majorStatuses = map[Status]bool{
	StatusSubmitted: true,
	StatusApproved:  true,
	StatusCompleted: true,
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// AllowedTargets returns the legal targets from s, empty for terminal states.
func AllowedTargets(s Status) []Status {
	targets := transitions[s]
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}

// VersioningRequired reports whether entering target must create a new
// version row instead of mutating the current one in place.
func VersioningRequired(target Status) bool {
	return majorStatuses[target]
}

// InvalidTransitionError reports an illegal status move along with the
// targets that would have been accepted, for caller display.
type InvalidTransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("cannot transition from %s to %s: %s is terminal", e.From, e.To, e.From)
	}
	names := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("cannot transition from %s to %s, allowed: %s", e.From, e.To, strings.Join(names, ", "))
}

// ValidateTransition checks the move from current to target against the
// transition graph. It returns *InvalidTransitionError on an illegal move.
func ValidateTransition(current, target Status) error {
	for _, allowed := range transitions[current] {
		if allowed == target {
			return nil
		}
	}
	return &InvalidTransitionError{
		From:    current,
		To:      target,
		Allowed: AllowedTargets(current),
	}
}
