// Package errs defines the error kinds surfaced by the care-alerting
// pipeline. Handlers map them onto HTTP statuses; services wrap lower-level
// failures into one of these so callers can branch with errors.As.
package errs

import "fmt"

// ValidationError rejects malformed or out-of-domain input before any state
// mutation happens.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown patient, case, or responder reference.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// StateConflictError reports an operation that is invalid for the record's
// current lifecycle state, such as resolving an already-resolved case.
type StateConflictError struct {
	Msg string
}

func (e *StateConflictError) Error() string { return e.Msg }

func StateConflict(format string, args ...interface{}) *StateConflictError {
	return &StateConflictError{Msg: fmt.Sprintf(format, args...)}
}

// SchedulingError reports a failure of the escalation timer substrate. It
// never aborts ingestion; the caller compensates by escalating immediately.
type SchedulingError struct {
	Msg string
	Err error
}

func (e *SchedulingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *SchedulingError) Unwrap() error { return e.Err }

func Scheduling(msg string, err error) *SchedulingError {
	return &SchedulingError{Msg: msg, Err: err}
}
