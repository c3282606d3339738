package models

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidReason = errors.New("invalid cancellation reason")
)

// TransportError is network-level failure: timeout, connection refused and
// the like. May be transient, callers decide whether retrying makes sense.
type TransportError struct {
	Op  string
	Err error
}

// NewTransportError creates new TransportError instance
func NewTransportError(op string, err error) TransportError {
	return TransportError{Op: op, Err: err}
}

func (e TransportError) Error() string {
	return fmt.Sprintf("transport error on %s: %v", e.Op, e.Err)
}

func (e TransportError) Unwrap() error {
	return e.Err
}

// RemoteError is non-2xx response from the marketplace. It carries the
// status code and response body so callers can decide retry-worthiness.
type RemoteError struct {
	Status int
	Body   string
}

// NewRemoteError creates new RemoteError instance
func NewRemoteError(status int, body string) RemoteError {
	return RemoteError{Status: status, Body: body}
}

func (e RemoteError) Error() string {
	return fmt.Sprintf("remote error: status %d: %s", e.Status, e.Body)
}
