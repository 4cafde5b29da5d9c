// Package errors carries the structured error used across services: a code for machines,
// a message for people and the record field at fault when there is one.
//
// Import it as perr.
package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by single row lookups that match nothing
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Error is the structured error. Mutators copy, so a shared error is never edited in place
type Error struct {
	code  ErrorCode
	msg   string
	field string
	cause error
}

// Wire is the JSON body an API error is rendered as
type Wire struct {
	Code    ErrorCode `json:"code"`
	Name    string    `json:"name,omitempty"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.cause == nil:
		return e.msg
	default:
		return e.msg + ": " + e.cause.Error()
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, empty when none
func (e *Error) Field() string { return e.field }

// New returns an error with code and msg
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf is New with a format
func Newf(code ErrorCode, format string, a ...any) error {
	return New(code, fmt.Sprintf(format, a...))
}

// Wrap returns an error with code and msg whose cause is orig
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, cause: orig}
}

// Wrapf is Wrap with a format
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return Wrap(orig, code, fmt.Sprintf(format, a...))
}

func InvalidArgf(format string, a ...any) error  { return Newf(ErrorCodeInvalidArgument, format, a...) }
func JSONErrf(format string, a ...any) error     { return Newf(ErrorCodeJSON, format, a...) }
func PanicErrf(format string, a ...any) error    { return Newf(ErrorCodePanic, format, a...) }
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }
func UnknownKindf(format string, a ...any) error { return Newf(ErrorCodeUnknownKind, format, a...) }
func Catalogf(format string, a ...any) error     { return Newf(ErrorCodeCatalog, format, a...) }

// Coercionf returns a coercion error tagged with field
func Coercionf(field, format string, a ...any) error {
	return WithField(Newf(ErrorCodeCoercion, format, a...), field)
}

// As finds the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrs.As(err, &e)
	return e, ok
}

// WithField returns a copy of err naming field. Foreign errors pass through untouched
func WithField(err error, field string) error {
	e, ok := As(err)
	if !ok {
		return err
	}
	c := *e
	c.field = field
	return &c
}

// CodeOf is the code of the first *Error in err's chain, ErrorCodeUnknown without one
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// FieldOf is the field of the first *Error in err's chain
func FieldOf(err error) string {
	if e, ok := As(err); ok {
		return e.field
	}
	return ""
}

// IsCode reports whether err carries code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// Root returns the innermost cause
func Root(err error) error {
	for {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
}

// HTTP maps err to a status and the body to send with it
func HTTP(err error) (int, Wire) {
	if err == nil {
		return http.StatusOK, Wire{}
	}
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError, Wire{Code: ErrorCodeUnknown, Name: ErrorCodeUnknown.String(), Message: err.Error()}
	}
	return HTTPStatusCode(e.code), Wire{Code: e.code, Name: e.code.String(), Message: e.msg, Field: e.field}
}

// Retryable reports whether a retry may succeed: store contention or an Unavailable code
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return IsRetryable(err) || CodeOf(err) == ErrorCodeUnavailable
}
