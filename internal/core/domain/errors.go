package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown repository type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrAnalysisInProgress indicates an analysis run is already active for a session.
	ErrAnalysisInProgress = errors.New("analysis in progress")

	// Pipeline Errors.

	// ErrGroupSealed indicates an attempt to add actions to a change group
	// that has left its open status.
	ErrGroupSealed = errors.New("change group is sealed")

	// ErrInvalidTransition indicates a status change the pipeline does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStaleStatus indicates a change group was not in the expected status
	// when a transition was applied. The transition is rolled back.
	ErrStaleStatus = errors.New("change group status changed concurrently")

	// ErrHighWaterMarkRegression indicates an attempt to move a high-water mark backwards.
	ErrHighWaterMarkRegression = errors.New("high-water mark cannot decrease")

	// Translation Errors.

	// ErrTranslationFinished indicates Execute or Finish was called on a
	// translation that has already been finished.
	ErrTranslationFinished = errors.New("translation already finished")

	// ErrInternal indicates a programming invariant was violated.
	ErrInternal = errors.New("internal error")

	// Repository Errors.

	// ErrRepositoryClosed indicates the repository has been closed.
	ErrRepositoryClosed = errors.New("repository closed")

	// ErrRateLimited indicates the remote API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthRequired indicates the repository requires credentials but none are configured.
	ErrAuthRequired = errors.New("authentication required")
)

// InternalError reports a violated invariant, such as an item type the
// translator cannot handle. It is not meant to be caught below the run boundary.
type InternalError struct {
	Op     string
	Detail string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInternal, e.Op, e.Detail)
}

// Unwrap allows errors.Is(err, ErrInternal).
func (e *InternalError) Unwrap() error {
	return ErrInternal
}

// NewInternalError creates an InternalError.
func NewInternalError(op, format string, args ...any) *InternalError {
	return &InternalError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// UnresolvedConflictError aborts an analysis run. The change-set that raised
// it is not committed and the high-water mark stays before it.
type UnresolvedConflictError struct {
	Conflict Conflict
}

func (e *UnresolvedConflictError) Error() string {
	return fmt.Sprintf("unresolved %s conflict at revision %d on %s",
		e.Conflict.Type, e.Conflict.Revision, e.Conflict.Scope)
}

// IsUnresolvedConflict reports whether err carries an unresolved conflict.
func IsUnresolvedConflict(err error) (*UnresolvedConflictError, bool) {
	var uc *UnresolvedConflictError
	if errors.As(err, &uc) {
		return uc, true
	}
	return nil, false
}
