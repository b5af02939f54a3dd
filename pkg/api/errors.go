package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failure at the point it happens so callers never have to
// inspect message text to decide how to react.
type Kind string

const (
	// KindValidation marks local input problems that never reach the network.
	KindValidation Kind = "validation"
	// KindRejected marks a well-formed response carrying success=false.
	KindRejected Kind = "rejected"
	// KindMalformed marks a response that is not JSON or fails to decode.
	KindMalformed Kind = "malformed"
	// KindConnectivity marks transport level failures.
	KindConnectivity Kind = "connectivity"
	// KindTimeout marks requests aborted by the client-side deadline.
	KindTimeout Kind = "timeout"
	// KindDecode marks images that passed validation but could not be decoded.
	KindDecode Kind = "decode"
	// KindCanceled marks requests abandoned because the caller's context ended.
	KindCanceled Kind = "canceled"
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = "unknown"
)

// Error is the typed failure returned by the client and the wizard.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("portrait: %s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("portrait: %s %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf reports the classification carried by err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) && typed != nil {
		return typed.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ServerMessage returns the server-provided message for rejected requests.
func ServerMessage(err error) string {
	var typed *Error
	if errors.As(err, &typed) && typed != nil && typed.Kind == KindRejected {
		return typed.Message
	}
	return ""
}

func newError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}
