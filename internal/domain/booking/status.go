package booking

import (
	"fmt"
	"strings"

	"bookingengine/internal/domain/shared/fault"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var validTransitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:  {StatusCancelled, StatusCompleted},
	StatusRejected:  {},
	StatusCancelled: {},
	StatusCompleted: {},
}

// ActiveStatuses hold dates on a property.
var ActiveStatuses = []Status{StatusPending, StatusAccepted}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validTransitions[s]; !ok {
		return "", fmt.Errorf("%w: unknown booking status %q", fault.ErrInvalidInput, raw)
	}
	return s, nil
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// IsActive reports whether a booking in this status blocks its dates.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusAccepted
}

func (s Status) String() string { return string(s) }
