package errs

import "errors"

// Categories. Callers branch on these with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrPolicyViolation = errors.New("policy violation")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTransient       = errors.New("transient failure")
)

var (
	ErrEventNotFound   = newError("event not found", ErrNotFound)
	ErrUserNotFound    = newError("user not found", ErrNotFound)
	ErrWannagoNotFound = newError("wannago not found", ErrNotFound)

	ErrAlreadyInvited = newError("already invited", ErrConflict)
	ErrWannagoExists  = newError("wannago already exists", ErrConflict)

	ErrGroupRequired     = newError("group privacy requires a group", ErrPolicyViolation)
	ErrIncompleteViewer  = newError("incomplete viewer profile", ErrPolicyViolation)
	ErrPolicyReverify    = newError("store returned an event the viewer may not see", ErrPolicyViolation)
	ErrNotEventMember    = newError("caller may not change this event's invitations", ErrPolicyViolation)
	ErrInvalidAgeRange   = newError("filter min age exceeds max age", ErrInvalidArgument)
	ErrInvalidTimeRange  = newError("start of time range is after its end", ErrInvalidArgument)
	ErrInvalidPagination = newError("take or skip out of range", ErrInvalidArgument)
	ErrInvalidSortMode   = newError("unknown sort mode", ErrInvalidArgument)
	ErrEmptyUpdate       = newError("update has no fields", ErrInvalidArgument)
	ErrNotNullable       = newError("field cannot be cleared", ErrInvalidArgument)

	ErrQueryTimeout     = newError("query timed out", ErrTransient)
	ErrStoreUnavailable = newError("store unavailable", ErrTransient)
)

type categorized struct {
	msg      string
	category error
}

func newError(msg string, category error) error {
	return &categorized{msg: msg, category: category}
}

func (e *categorized) Error() string { return e.msg }

func (e *categorized) Unwrap() error { return e.category }

// Invalid wraps a validation failure into the InvalidArgument category
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, category: ErrInvalidArgument}
}

// Transient wraps a retryable store failure
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, category: ErrTransient}
}

type wrapped struct {
	err      error
	category error
}

func (e *wrapped) Error() string { return e.err.Error() }

func (e *wrapped) Unwrap() []error { return []error{e.err, e.category} }

// Retryable reports whether the operation may be retried with backoff
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
