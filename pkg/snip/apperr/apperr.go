// Package apperr defines the error kinds the services return and how each
// one is presented over HTTP.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the caller
type Kind uint8

const (
	Internal Kind = iota
	BadRequest
	Unauthorized
	Forbidden
	NotFound
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Internal:
		return "Internal"
	case BadRequest:
		return "BadRequest"
	case Unauthorized:
		return "Unauthorized"
	case Forbidden:
		return "Forbidden"
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Status maps a kind to its HTTP status code
func (k Kind) Status() int {
	switch k {
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Message is safe to show to callers;
// Err carries the underlying cause for logs.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

// E builds a classified error with a caller-facing message
func E(op string, kind Kind, message string) error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// Wrap classifies err. It returns nil when err is nil.
func Wrap(op string, kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the caller-facing message for err. Internal errors and
// unclassified errors never expose their cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}

// Is reports whether err is classified with kind
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
