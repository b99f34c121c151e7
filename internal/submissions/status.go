package submissions

import (
	"errors"
	"fmt"
	"strings"
)

// Status enumerates the lifecycle states of a submission.
type Status string

const (
	// StatusPending is the initial state of a publicly created submission.
	StatusPending Status = "pending"
	// StatusPendingPayment marks a submission awaiting checkout completion.
	StatusPendingPayment Status = "pending_payment"
	// StatusConfirmed marks a paid submission awaiting the appointment.
	StatusConfirmed Status = "confirmed"
	// StatusCompleted marks a submission whose appointment has taken place.
	StatusCompleted Status = "completed"
	// StatusCancelled is reachable from any non-terminal state.
	StatusCancelled Status = "cancelled"
)

// ErrUnknownStatus indicates a value outside the status enum.
var ErrUnknownStatus = errors.New("submissions: unknown status")

// TransitionError reports a status write rejected by the transition table.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("submissions: illegal transition %s -> %s", e.From, e.To)
}

// allowedTransitions is the full lifecycle: pending -> pending_payment ->
// confirmed -> completed, with cancellation from any non-terminal state.
var allowedTransitions = map[Status][]Status{
	StatusPending:        {StatusPendingPayment, StatusCancelled},
	StatusPendingPayment: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusCompleted, StatusCancelled},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

// ParseStatus validates raw input against the status enum.
func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := allowedTransitions[candidate]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return candidate, nil
}

// CanTransitionTo reports whether the transition table permits moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Label returns the display label for the status. The mapping is total over
// the enum; unknown values fall back to the raw string rather than blank.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusPendingPayment:
		return "Awaiting payment"
	case StatusConfirmed:
		return "Confirmed"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// AllStatuses lists every defined status value.
func AllStatuses() []Status {
	return []Status{
		StatusPending,
		StatusPendingPayment,
		StatusConfirmed,
		StatusCompleted,
		StatusCancelled,
	}
}
