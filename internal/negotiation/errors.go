package negotiation

import (
	"errors"
	"fmt"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrConflict is returned by Save when a concurrent writer got there
	// first. Callers should reload and retry the whole operation.
	ErrConflict = errors.New("appointment was modified concurrently")
)

// ValidationError marks malformed or incomplete input to an engine
// operation. It is never retried and is surfaced verbatim to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError means the requested (status, actor) pair has no
// matching rule in the transition table. It carries the attempted triple so
// the caller can render a precise message.
type InvalidTransitionError struct {
	From  AppointmentStatus
	To    AppointmentStatus
	Actor Actor
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move appointment from %s to %s", e.Actor, e.From, e.To)
}
