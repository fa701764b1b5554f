// Package apperr defines the error kinds every repair-job operation reports.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindAuthorization Kind = "forbidden"
)

// Conflict reasons.
const (
	ReasonNoOpTransition       = "no_op_transition"
	ReasonTransitionNotAllowed = "transition_not_allowed"
	ReasonInsufficientStock    = "insufficient_stock"
	ReasonJobNumberCollision   = "job_number_collision"
	ReasonSerialization        = "serialization_failure"
	ReasonHasDependents        = "has_dependents"
	ReasonPartInUse            = "part_in_use"
	ReasonDuplicate            = "duplicate"
)

type Error struct {
	Kind      Kind
	Reason    string
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and, when set on the target, reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(what string, id any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", what, id)}
}

func Conflict(reason, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// RetryableConflict marks a conflict that a caller may resolve by retrying
// the same request unchanged.
func RetryableConflict(reason string, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:      KindConflict,
		Reason:    reason,
		Message:   fmt.Sprintf(format, args...),
		Retryable: true,
		Err:       cause,
	}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is checks.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrAuthorization = &Error{Kind: KindAuthorization}
)

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

func ReasonOf(err error) string {
	if e, ok := As(err); ok {
		return e.Reason
	}
	return ""
}

func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable
}
