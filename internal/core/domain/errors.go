package domain

import "errors"

// Error classes shared by every service. Callers wrap them with context
// (fmt.Errorf("%w: ...", ErrNotFound)) and handlers map them to status codes.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
)

// ErrLocked is returned when a finalized attendance record is written to.
// It is a conflict.
var ErrLocked = &lockedError{}

type lockedError struct{}

func (e *lockedError) Error() string { return "attendance for this date is already finalized and locked" }

func (e *lockedError) Is(target error) bool { return target == ErrConflict }

// ErrUnavailable marks a dependency that could not serve the request, e.g. a
// receipt that no renderer could produce.
var ErrUnavailable = errors.New("service unavailable")
