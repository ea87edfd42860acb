// Package protocol defines the JSON envelopes exchanged between participants
// and the broker.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type tags an envelope.
type Type string

const (
	TypeCreateSession Type = "create-session"
	TypeJoinSession   Type = "join-session"
	TypeSignal        Type = "signal"
	TypePing          Type = "ping"

	TypeSessionCreated   Type = "session-created"
	TypeJoinSuccess      Type = "join-success"
	TypeSessionJoined    Type = "session-joined"
	TypeUserDisconnected Type = "user-disconnected"
	TypeError            Type = "error"
	TypePong             Type = "pong"
)

var (
	ErrMissingType = errors.New("envelope has no type")
	ErrUnknownType = errors.New("unknown envelope type")
)

// Known reports whether t is one of the enumerated envelope types.
func (t Type) Known() bool {
	switch t {
	case TypeCreateSession, TypeJoinSession, TypeSignal, TypePing,
		TypeSessionCreated, TypeJoinSuccess, TypeSessionJoined,
		TypeUserDisconnected, TypeError, TypePong:
		return true
	}
	return false
}

// Envelope is the wire form of every text frame.
type Envelope struct {
	Type      Type            `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Decode parses a text frame. Frames with an unknown type are returned
// together with ErrUnknownType so that callers can log and ignore them.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}
	if !env.Type.Known() {
		return &env, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return &env, nil
}

// Encode marshals the envelope to JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// New builds an envelope, marshalling payload when it is non-nil.
func New(t Type, sessionID string, payload any) (*Envelope, error) {
	env := &Envelope{Type: t, SessionID: sessionID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return env, nil
}

// ErrorEnvelope builds an error envelope carrying message.
func ErrorEnvelope(message string) *Envelope {
	return &Envelope{Type: TypeError, Message: message}
}
