package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// TransportError means no usable answer came back: network failure, cancellation,
// or an undecodable body.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AppError is an application-level failure: the backend answered success:false.
type AppError struct {
	Op      string
	Status  int
	Message string
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, http.StatusText(e.Status))
}

// AsAppError checks if an error is an AppError and returns it.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsUnauthorized reports whether the backend rejected the session.
func IsUnauthorized(err error) bool {
	ae, ok := AsAppError(err)
	return ok && ae.Status == http.StatusUnauthorized
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsCanceled reports whether the request was abandoned by its context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
