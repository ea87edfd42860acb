package remote

import (
	"errors"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError("join session", ErrSessionFull)
	if err.Error() != "join session: session full" {
		t.Errorf("Expected 'join session: session full', got %q", err.Error())
	}

	wrapped := WrapError("broker", ErrSignalingError, "boom")
	if wrapped.Error() != "broker: signaling server error (boom)" {
		t.Errorf("Unexpected message %q", wrapped.Error())
	}
	if !errors.Is(wrapped, ErrSignalingError) {
		t.Error("Expected wrapped error to match ErrSignalingError")
	}
}

func TestFromBroker(t *testing.T) {
	tests := []struct {
		message string
		want    error
	}{
		{"session not found", ErrSessionNotFound},
		{"session full", ErrSessionFull},
		{"not in a session", ErrNotInSession},
		{"already in a session", ErrAlreadyInSession},
		{"something else", ErrSignalingError},
	}

	for _, tt := range tests {
		if got := FromBroker(tt.message); !errors.Is(got, tt.want) {
			t.Errorf("FromBroker(%q): expected %v, got %v", tt.message, tt.want, got)
		}
	}
}
