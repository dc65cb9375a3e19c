/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

package voicesdk

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed is returned to callers blocked on a request/reply
// round-trip when the channel is torn down before the reply arrives.
var ErrConnectionClosed = errors.New("channel closed")

// SignalingError is the base error type for signaling failures. Specific
// error sub-types embed this struct, so consumers can use
// errors.As(err, &sigErr) to access common fields regardless of the
// specific error type.
type SignalingError struct {
	// Op is the operation that failed (e.g. "answer", "hold").
	Op string

	// Code is the gateway error code, when the failure originated from a
	// protocol-level error reply. Zero otherwise.
	Code int

	// Message is a human-readable description of the failure.
	Message string

	// Err is an optional wrapped error for errors.Unwrap support.
	Err error
}

// Error implements the error interface.
func (e *SignalingError) Error() string {
	msg := "signaling error"
	if e.Op != "" {
		msg = e.Op
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(": code %d", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap returns the wrapped error, if any.
func (e *SignalingError) Unwrap() error {
	return e.Err
}

// PreconditionError reports a call operation invoked while the call lacks a
// prerequisite (e.g. answering with no media session attached). Fatal to the
// specific operation, never to the engine.
type PreconditionError struct {
	*SignalingError
}

// Unwrap returns the underlying SignalingError for errors.As traversal.
func (e *PreconditionError) Unwrap() error { return e.SignalingError }

// NewPreconditionError builds a PreconditionError for the given operation.
func NewPreconditionError(op, message string) *PreconditionError {
	return &PreconditionError{&SignalingError{Op: op, Message: message}}
}

// ProtocolError reports a malformed or semantically invalid gateway reply,
// such as a hold confirmation reporting the wrong hold state. Surfaced to
// the caller of that specific operation only.
type ProtocolError struct {
	*SignalingError
}

// Unwrap returns the underlying SignalingError for errors.As traversal.
func (e *ProtocolError) Unwrap() error { return e.SignalingError }

// NewProtocolError builds a ProtocolError for the given operation.
func NewProtocolError(op string, code int, message string) *ProtocolError {
	return &ProtocolError{&SignalingError{Op: op, Code: code, Message: message}}
}

// TransportError reports a transport-level send or connect failure. Sends
// are best-effort; these errors are logged (and for fire-and-forget paths
// swallowed) rather than propagated into the event loop.
type TransportError struct {
	*SignalingError
}

// Unwrap returns the underlying SignalingError for errors.As traversal.
func (e *TransportError) Unwrap() error { return e.SignalingError }

// NewTransportError wraps a transport failure for the given operation.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{&SignalingError{Op: op, Message: err.Error(), Err: err}}
}
