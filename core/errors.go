package core

import "github.com/pkg/errors"

// ErrorKind classifies the domain failures surfaced to callers.
type ErrorKind string

const (
	KindInvalidCredentials  ErrorKind = "InvalidCredentials"
	KindTokenNotFound       ErrorKind = "TokenNotFound"
	KindTokenRevoked        ErrorKind = "TokenRevoked"
	KindTokenExpired        ErrorKind = "TokenExpired"
	KindTokenInvalid        ErrorKind = "TokenInvalid"
	KindForbidden           ErrorKind = "Forbidden"
	KindUserNotFound        ErrorKind = "UserNotFound"
	KindGroupNotFound       ErrorKind = "GroupNotFound"
	KindGroupAlreadyExists  ErrorKind = "GroupAlreadyExists"
	KindRoleMismatch        ErrorKind = "RoleMismatch"
	KindStudentNotInGroup   ErrorKind = "StudentNotInGroup"
	KindLessonNotFound      ErrorKind = "LessonNotFound"
	KindLessonAlreadyExists ErrorKind = "LessonAlreadyExists"
	KindInvalidGradeValue   ErrorKind = "InvalidGradeValue"
)

// Error is a domain failure: caller input or state problem, never retried.
type Error struct {
	Kind    ErrorKind
	Message string
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func (err *Error) Error() string {
	return err.Message
}

// KindOf returns the ErrorKind of err's cause, if it is a domain Error.
func KindOf(err error) (ErrorKind, bool) {
	if derr, ok := errors.Cause(err).(*Error); ok {
		return derr.Kind, true
	}
	return "", false
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
