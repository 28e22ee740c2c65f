// Package apperr defines the closed set of domain errors raised by services.
//
// Services return *Error values; the HTTP boundary maps each Kind to a fixed
// status code. Anything that is not an *Error is an unexpected fault.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the named domain failure kinds.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindConflict
	KindAuthorization
	KindApplication
)

// Kinds lists every domain error kind.
var Kinds = []Kind{KindNotFound, KindValidation, KindConflict, KindAuthorization, KindApplication}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindApplication:
		return "application"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a domain error.
type Error struct {
	Kind    Kind
	Message string

	// Field names the offending input field for validation failures.
	Field string

	// Resource and ResourceID are set for not-found failures.
	Resource   string
	ResourceID string

	// Err is an optional cause. It is never shown to callers.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
// This lets callers write errors.Is(err, &apperr.Error{Kind: apperr.KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	if resource == "" {
		resource = "Resource"
	}
	msg := resource + " not found"
	if id != "" {
		msg = fmt.Sprintf("%s with id '%s' not found", resource, id)
	}
	return &Error{Kind: KindNotFound, Message: msg, Resource: resource, ResourceID: id}
}

// Validation reports a business rule violation on the given field.
func Validation(msg, field string) *Error {
	if msg == "" {
		msg = "Validation failed"
	}
	return &Error{Kind: KindValidation, Message: msg, Field: field}
}

// Conflict reports an operation that conflicts with existing state.
func Conflict(msg string) *Error {
	if msg == "" {
		msg = "Resource conflict"
	}
	return &Error{Kind: KindConflict, Message: msg}
}

// Forbidden reports a caller lacking permission for an operation.
func Forbidden(msg string) *Error {
	if msg == "" {
		msg = "Not authorized"
	}
	return &Error{Kind: KindAuthorization, Message: msg}
}

// Application reports a generic application failure.
func Application(msg string) *Error {
	if msg == "" {
		msg = "An error occurred"
	}
	return &Error{Kind: KindApplication, Message: msg}
}

// Wrap builds a domain error of the given kind around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// As extracts the domain error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the domain kind of err, or 0 if err is not a domain error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return 0
}
