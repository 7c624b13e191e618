package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an HTTP API error. Message is returned to the client as
// {"error": Message}.
type Error struct {
	Message string
	Status  int
	// Err is the underlying cause. It is logged, never returned to clients.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new API error.
func NewError(status int, message string) *Error {
	return &Error{Message: message, Status: status}
}

// Wrap attaches a cause to the error.
func (e *Error) Wrap(err error) *Error {
	return &Error{Message: e.Message, Status: e.Status, Err: err}
}

// Common API errors
var (
	// ErrBadRequest indicates a malformed request or missing parameters
	ErrBadRequest = func(msg string) *Error {
		return NewError(http.StatusBadRequest, msg)
	}

	// ErrUnauthorized indicates a missing session or insufficient role
	ErrUnauthorized = func() *Error {
		return NewError(http.StatusUnauthorized, "Unauthorized")
	}

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = func(msg string) *Error {
		return NewError(http.StatusNotFound, msg)
	}

	// ErrTooManyRequests indicates the caller exceeded the rate limit
	ErrTooManyRequests = func() *Error {
		return NewError(http.StatusTooManyRequests, "Too many requests")
	}

	// ErrInternal indicates a server-side failure
	ErrInternal = func(msg string) *Error {
		return NewError(http.StatusInternalServerError, msg)
	}

	// ErrBadGateway indicates an upstream API failed
	ErrBadGateway = func(msg string) *Error {
		return NewError(http.StatusBadGateway, msg)
	}
)

// AsError converts err into an *Error, defaulting to a 500 with fallback as
// the client-facing message.
func AsError(err error, fallback string) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal(fallback).Wrap(err)
}
