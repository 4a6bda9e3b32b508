// Package dErrors carries machine-readable error codes from domain logic to
// the transport layer. Aggregates and services return these for every expected
// business-rule violation instead of panicking; callers branch on the code and
// the HTTP layer maps codes to statuses.
//
// Import with the dErrors alias:
//
//	dErrors "carelink/pkg/domain-errors"
package domainerrors

import (
	"errors"
	"fmt"
)

// Code tags an error with a stable, machine-readable identifier. The string
// values are part of the API contract and surface verbatim in responses.
type Code string

const (
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeValidation   Code = "VALIDATION_FAILED"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeInternal     Code = "INTERNAL"

	// Workflow-specific codes.
	CodeInvalidTransition      Code = "INVALID_STATUS_TRANSITION"
	CodeDuplicateSession       Code = "DUPLICATE_SESSION_NUMBER"
	CodeInvalidFeedback        Code = "INVALID_FEEDBACK"
	CodeMissingCounselContent  Code = "MISSING_COUNSEL_CONTENT"
	CodeMissingConsent         Code = "MISSING_CONSENT"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
)

// Error is a domain error with a code and human-readable message. It may wrap
// an underlying cause for logging; the cause is never shown to clients.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a domain error from a code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability in handlers.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code on err, or CodeInternal when err carries
// no domain code at all.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost client-safe message, or a generic fallback.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
