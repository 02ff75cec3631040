// Package apperr carries the domain error taxonomy. Every engine failure is
// one of these kinds; handlers translate kinds to HTTP statuses in one place.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

type Kind int

const (
	KindInvalid   Kind = iota // malformed or missing domain data
	KindConflict              // valid request, current state forbids it
	KindNotFound              // referenced entity absent
	KindForbidden             // role / ownership rule violated
	KindInternal              // persistence or infrastructure failure
)

type Error struct {
	Kind      Kind
	Message   string
	Retryable bool // lock contention, safe to retry the whole command
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalid, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// FromDB classifies a persistence error. Record-not-found becomes not-found,
// a MySQL lock wait timeout (error 1205) becomes a retryable conflict so the
// caller can re-submit instead of blocking; everything else is internal.
func FromDB(err error, what string) *Error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound("%s not found", what)
	}
	if strings.Contains(err.Error(), "Lock wait timeout") {
		return &Error{Kind: KindConflict, Message: "busy, try again", Retryable: true, Err: err}
	}
	return Internal("database error", err)
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindInvalid:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
