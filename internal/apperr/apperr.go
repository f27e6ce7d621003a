package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindRejection
	KindNotFound
	KindForbidden
)

// Error is an expected, user-facing outcome. It is never a storage failure:
// those are plain wrapped errors and map to a generic server error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Validation(code, format string, args ...any) *Error {
	return New(KindValidation, code, fmt.Sprintf(format, args...))
}

func Rejection(code, format string, args ...any) *Error {
	return New(KindRejection, code, fmt.Sprintf(format, args...))
}

func NotFound(code, format string, args ...any) *Error {
	return New(KindNotFound, code, fmt.Sprintf(format, args...))
}

func Forbidden(code, format string, args ...any) *Error {
	return New(KindForbidden, code, fmt.Sprintf(format, args...))
}

// With attaches a structured detail and returns e for chaining.
func (e *Error) With(key string, v any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = v
	return e
}

func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func HasCode(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}
