package service

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when the acting user lacks the role or
// ownership required for an operation.
var ErrForbidden = errors.New("forbidden")

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a status change the state machine does not allow.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}
