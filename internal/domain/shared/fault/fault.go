package fault

import (
	"errors"
	"fmt"
)

// Code classifies a failure so transports can map it without string matching.
type Code string

const (
	CodeUnknown      Code = "UNKNOWN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeForbidden    Code = "FORBIDDEN"
	CodeInvalidState Code = "INVALID_STATE"
	CodeConflict     Code = "CONFLICT"
	CodeValidation   Code = "VALIDATION"
)

type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func NotFound(message string) error { return New(CodeNotFound, message) }

func Forbidden(message string) error { return New(CodeForbidden, message) }

func InvalidState(message string) error { return New(CodeInvalidState, message) }

func Conflict(message string) error { return New(CodeConflict, message) }

func Invalid(message string) error { return New(CodeValidation, message) }

// CodeOf extracts the classification from err, CodeUnknown when untyped.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeUnknown
}
