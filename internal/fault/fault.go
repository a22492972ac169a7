// Package fault defines the typed error taxonomy shared by the domain
// layer. Components return faults classified by kind; the HTTP layer is
// the only place that maps kinds to status codes.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnprocessable   Kind = "unprocessable"
	KindUnauthenticated Kind = "unauthenticated"
	KindPermission      Kind = "permission"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInvalidState    Kind = "invalid_state"
)

// Error is a classified domain error.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New creates a fault of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed input or an invalid enum value.
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// Unprocessable reports a well-formed request whose content cannot be
// accepted, such as an empty required field.
func Unprocessable(format string, args ...interface{}) *Error {
	return New(KindUnprocessable, format, args...)
}

// Unauthenticated reports a missing, invalid, or expired credential.
func Unauthenticated(format string, args ...interface{}) *Error {
	return New(KindUnauthenticated, format, args...)
}

// Permission reports an authenticated caller acting outside its scope.
func Permission(format string, args ...interface{}) *Error {
	return New(KindPermission, format, args...)
}

// NotFound reports a missing row.
func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

// Conflict reports a uniqueness violation such as a taken username.
func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

// InvalidState reports a rejected status transition.
func InvalidState(format string, args ...interface{}) *Error {
	return New(KindInvalidState, format, args...)
}

// KindOf returns the kind of err, or the empty Kind when err carries no
// classification.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err is a fault of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
