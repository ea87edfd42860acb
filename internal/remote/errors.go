package remote

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionFull        = errors.New("session full")
	ErrNotInSession       = errors.New("not in a session")
	ErrAlreadyInSession   = errors.New("already in a session")
	ErrPeerDisconnected   = errors.New("peer disconnected")
	ErrSignalingError     = errors.New("signaling server error")
	ErrNotConnected       = errors.New("not connected to broker")
	ErrChannelNotOpen     = errors.New("control channel not open")
	ErrUnexpectedSignal   = errors.New("unexpected signal type")
	ErrCaptureUnavailable = errors.New("screen capture unavailable")
	ErrUnknownControl     = errors.New("unknown control message")
	ErrClosed             = errors.New("closed")
)

// Error records the operation that failed alongside the underlying cause.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

// FromBroker maps an error message received from the broker back onto a
// sentinel so callers can branch with errors.Is.
func FromBroker(message string) error {
	switch message {
	case ErrSessionNotFound.Error():
		return ErrSessionNotFound
	case ErrSessionFull.Error():
		return ErrSessionFull
	case ErrNotInSession.Error():
		return ErrNotInSession
	case ErrAlreadyInSession.Error():
		return ErrAlreadyInSession
	}
	return WrapError("broker", ErrSignalingError, message)
}
