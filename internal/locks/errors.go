package locks

import (
	"errors"
	"fmt"
	"strings"

	"lototrak/internal/storage"
)

// Domain errors surfaced by the lifecycle manager. The HTTP layer maps these
// onto status codes; storage failures pass through untranslated.
var (
	ErrNotFound      = errors.New("lock not found")
	ErrForbidden     = errors.New("lock is not assigned to you")
	ErrNoProcedures  = errors.New("no safety procedures defined for this lock")
	ErrCodeInUse     = errors.New("access code already in use")
	ErrInvalidCode   = errors.New("invalid access code format, must be 4-16 alphanumeric characters, underscores, or hyphens")
	ErrInvalidStatus = errors.New("invalid lock status")
	ErrMissingFields = errors.New("missing required fields")
)

// StateError reports an operation attempted against a lock whose current
// status does not permit it.
type StateError struct {
	Status storage.LockStatus
	Reason string
}

func (e *StateError) Error() string {
	return e.Reason
}

func newStateError(status storage.LockStatus, format string, args ...any) *StateError {
	return &StateError{
		Status: status,
		Reason: fmt.Sprintf(format, args...),
	}
}

// ChecklistError lists required safety procedures absent from the submitted
// checks, in the order they appear on the lock.
type ChecklistError struct {
	Missing []string
}

func (e *ChecklistError) Error() string {
	return "missing safety checks: " + strings.Join(e.Missing, ", ")
}
