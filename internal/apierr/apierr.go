// Package apierr defines the error values handlers return to the HTTP layer.
//
// An *Error carries the HTTP status and the client-facing message. Handlers
// attach it with c.Error(err) and abort; middleware.ErrorHandler renders it as
// {"error": message}. Any error that is not an *Error renders as a 500 with a
// generic message so internal details never reach the client.
package apierr

import (
	"errors"
	"net/http"
)

// Error is an error with an HTTP status and a client-facing message.
type Error struct {
	Status  int
	Message string
	// Err is the underlying cause, logged but never sent to the client.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns a copy of e that records cause as the underlying error.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Status: e.Status, Message: e.Message, Err: cause}
}

func newError(status int, msg string) *Error {
	return &Error{Status: status, Message: msg}
}

// Constructors, one per status class.
func Unauthorized(msg string) *Error    { return newError(http.StatusUnauthorized, msg) }
func Forbidden(msg string) *Error       { return newError(http.StatusForbidden, msg) }
func BadRequest(msg string) *Error      { return newError(http.StatusBadRequest, msg) }
func NotFound(msg string) *Error        { return newError(http.StatusNotFound, msg) }
func Conflict(msg string) *Error        { return newError(http.StatusConflict, msg) }
func NotImplemented(msg string) *Error  { return newError(http.StatusNotImplemented, msg) }
func Upstream(msg string) *Error        { return newError(http.StatusBadGateway, msg) }
func TooManyRequests(msg string) *Error { return newError(http.StatusTooManyRequests, msg) }

// Internal wraps an unexpected failure. The message is fixed.
func Internal(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: "Internal Server Error", Err: cause}
}

// As reports whether err is (or wraps) an *Error and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusOf returns the HTTP status for err, 500 when err is not an *Error.
func StatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Messages shared between handlers and services.
var (
	ErrUnauthorized         = Unauthorized("Unauthorized")
	ErrStaffRequired        = Forbidden("Staff access required")
	ErrStudentRequired      = Forbidden("Student access required")
	ErrExamCompleted        = Forbidden("Exam already completed, no permission to access.")
	ErrExamNotCompleted     = Forbidden("Exam not completed")
	ErrExamNotFound         = NotFound("Exam not found")
	ErrAssignmentNotFound   = NotFound("Assignment not found.")
	ErrEnvironmentNotFound  = NotFound("Environment not found")
	ErrAlreadyCompleted     = Conflict("Exam already completed")
	ErrInvalidSubmission    = BadRequest("Code submission is invalid.")
	ErrInvalidViolation     = BadRequest("Violation report is invalid.")
	ErrNotImplemented       = NotImplemented("Not implemented")
	ErrGradingUnavailable   = Upstream("Grading service unavailable")
	ErrGradingFailed        = Upstream("Grading service error")
	ErrNotFoundInGrading    = NotFound("Not found in grading service")
	ErrRequestBodyMalformed = BadRequest("Invalid request body")
	ErrRateLimited          = TooManyRequests("Rate limit exceeded")
)
