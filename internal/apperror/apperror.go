// internal/apperror/apperror.go
package apperror

import (
	"errors"
	"fmt"
)

// Kinds of business errors raised by the stores and workflow engine. The web
// layer maps them to HTTP status codes with errors.Is; everything else
// collapses to a generic 500.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
)

// Error carries a human-readable business-rule message together with its kind.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

func newError(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// NotFoundf reports that a requested record does not exist.
func NotFoundf(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

// Duplicatef reports a uniqueness violation within the active scope.
func Duplicatef(format string, args ...any) error {
	return newError(ErrDuplicate, format, args...)
}

// Conflictf reports an invalid state transition or a delete blocked by
// dependent records.
func Conflictf(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

// Invalidf reports a request that violates a validation rule.
func Invalidf(format string, args ...any) error {
	return newError(ErrInvalid, format, args...)
}

// IsBusiness reports whether err is one of the typed business errors that map
// to a 400 response.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalid)
}
