package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SignalKind distinguishes negotiation payloads.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

var ErrUnknownSignal = errors.New("unknown signal kind")

// Signal is the payload of a signal envelope. SDP and Candidate are opaque
// to everything except the peer connection manager.
type Signal struct {
	Type      SignalKind      `json:"type"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// NewSignal wraps sig in a signal envelope for sessionID.
func NewSignal(sessionID string, sig Signal) (*Envelope, error) {
	return New(TypeSignal, sessionID, sig)
}

// Signal decodes the negotiation payload of a signal envelope.
func (e *Envelope) Signal() (*Signal, error) {
	if e.Type != TypeSignal {
		return nil, fmt.Errorf("envelope %q carries no signal", e.Type)
	}
	var sig Signal
	if err := json.Unmarshal(e.Payload, &sig); err != nil {
		return nil, err
	}
	switch sig.Type {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return &sig, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSignal, sig.Type)
}
