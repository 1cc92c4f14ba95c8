// Package apperr defines the error classes every request outcome maps to.
// An Error carries what a caller needs to act (its class and, for rate
// limiting, when to retry) and nothing about internal state.
package apperr

import (
	"errors"
	"math"
	"net/http"
	"time"
)

// Class identifies the kind of failure.
type Class string

const (
	AuthInvalid           Class = "auth_invalid"
	NotFound              Class = "not_found"
	Forbidden             Class = "forbidden"
	Conflict              Class = "conflict"
	BadCredentialMaterial Class = "bad_credential_material"
	RateLimited           Class = "rate_limited"
	InvalidRequest        Class = "invalid_request"
	NoTarget              Class = "no_target"
	Unexpected            Class = "unexpected"
)

// Error is a classified request failure.
type Error struct {
	Class      Class
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Class)
	}
	return e.Message
}

// New returns an Error of the given class.
func New(class Class, message string) *Error {
	return &Error{Class: class, Message: message}
}

// Limited returns a rate_limited Error that can be retried after d.
func Limited(d time.Duration) *Error {
	return &Error{Class: RateLimited, Message: "too many requests", RetryAfter: d}
}

// Invalid returns an invalid_request Error.
func Invalid(message string) *Error {
	return &Error{Class: InvalidRequest, Message: message}
}

// ClassOf reports the class of err. Errors that are not *Error are
// unexpected.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return Unexpected
}

// RetryAfterSeconds rounds the retry hint up to whole seconds, with a
// minimum of one second for rate_limited errors.
func RetryAfterSeconds(err error) int {
	var e *Error
	if !errors.As(err, &e) || e.Class != RateLimited {
		return 0
	}
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// PublicMessage is the message safe to show to the requester.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return "internal error"
}

// HTTPStatus maps a class to a response status.
func HTTPStatus(class Class) int {
	switch class {
	case AuthInvalid:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case Forbidden, BadCredentialMaterial:
		return http.StatusForbidden
	case Conflict, NoTarget:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	case InvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
