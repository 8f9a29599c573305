package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Kind classifies an error for clients and logs.
type Kind string

const (
	KindValidation                 Kind = "ValidationError"
	KindNotFound                   Kind = "NotFound"
	KindUnauthenticated            Kind = "Unauthenticated"
	KindInvalidToken               Kind = "InvalidToken"
	KindStaleCredential            Kind = "StaleCredential"
	KindUserNotFound               Kind = "UserNotFound"
	KindInvalidOrExpiredToken      Kind = "InvalidOrExpiredToken"
	KindForbidden                  Kind = "Forbidden"
	KindConflict                   Kind = "Conflict"
	KindTooManyRequests            Kind = "TooManyRequests"
	KindPayloadTooLarge            Kind = "PayloadTooLarge"
	KindNotificationDeliveryFailed Kind = "NotificationDeliveryFailed"
	KindUnavailable                Kind = "Unavailable"
	KindInternal                   Kind = "Internal"
)

// Error is the single error shape understood by the HTTP error handler.
type Error struct {
	Kind        Kind
	StatusCode  int
	Message     string
	Operational bool
	Err         error

	stack []uintptr
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status is "fail" for client errors and "error" for everything else.
func (e *Error) Status() string {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return "fail"
	}
	return "error"
}

// Stack renders the call stack captured when the error was created.
func (e *Error) Stack() string {
	if len(e.stack) == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}

func newError(kind Kind, status int, msg string, cause error, operational bool) *Error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	return &Error{
		Kind:        kind,
		StatusCode:  status,
		Message:     msg,
		Operational: operational,
		Err:         cause,
		stack:       pcs[:n],
	}
}

// New creates an operational error.
func New(kind Kind, status int, msg string) *Error {
	return newError(kind, status, msg, nil, true)
}

// Wrap creates an operational error that keeps cause for logs and verbose responses.
func Wrap(cause error, kind Kind, status int, msg string) *Error {
	return newError(kind, status, msg, cause, true)
}

// Internal marks err as an unexpected failure. Its detail never reaches clients in strict mode.
func Internal(err error) *Error {
	return newError(KindInternal, http.StatusInternalServerError, "internal error", err, false)
}

func Validation(msg string) *Error {
	return newError(KindValidation, http.StatusBadRequest, msg, nil, true)
}

func NotFound(msg string) *Error {
	return newError(KindNotFound, http.StatusNotFound, msg, nil, true)
}

func Unauthenticated(msg string) *Error {
	return newError(KindUnauthenticated, http.StatusUnauthorized, msg, nil, true)
}

func InvalidToken(msg string) *Error {
	return newError(KindInvalidToken, http.StatusUnauthorized, msg, nil, true)
}

func StaleCredential() *Error {
	return newError(KindStaleCredential, http.StatusUnauthorized,
		"User recently changed password! Please log in again.", nil, true)
}

func Forbidden(msg string) *Error {
	return newError(KindForbidden, http.StatusForbidden, msg, nil, true)
}

func Conflict(msg string) *Error {
	return newError(KindConflict, http.StatusConflict, msg, nil, true)
}

func Unavailable(msg string) *Error {
	return newError(KindUnavailable, http.StatusServiceUnavailable, msg, nil, true)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
