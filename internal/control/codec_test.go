package control

import (
	"errors"
	"testing"

	"github.com/BioHazard786/Deskrelay/internal/remote"
)

func TestEncodeClampsCoordinates(t *testing.T) {
	data, err := Encode(MoveTo(1.5, -0.25))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(data) != `{"t":"move","nx":1,"ny":0}` {
		t.Errorf("Unexpected encoding %s", data)
	}
}

func TestDecodeText(t *testing.T) {
	m, err := Decode([]byte(`{"t":"click","btn":"right","nx":0.5,"ny":0.25}`), true)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if m.T != KindClick || ParseButton(m.Btn) != ButtonRight {
		t.Errorf("Unexpected message %+v", m)
	}
	nx, ny, ok := m.Point()
	if !ok || nx != 0.5 || ny != 0.25 {
		t.Errorf("Expected point (0.5, 0.25), got (%v, %v, %v)", nx, ny, ok)
	}
}

func TestDecodeBinary(t *testing.T) {
	data, err := EncodeBinary(KeyDown("Enter"))
	if err != nil {
		t.Fatalf("EncodeBinary failed: %v", err)
	}
	m, err := Decode(data, false)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if m.T != KindKeyDown || m.Key != "Enter" {
		t.Errorf("Unexpected message %+v", m)
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"t":"teleport","nx":0.1,"ny":0.1}`), true)
	if !errors.Is(err, remote.ErrUnknownControl) {
		t.Errorf("Expected ErrUnknownControl, got %v", err)
	}

	if _, err := Encode(Message{T: "teleport"}); !errors.Is(err, remote.ErrUnknownControl) {
		t.Errorf("Expected encoder to reject unknown kind, got %v", err)
	}
}

func TestDecodeRejectsIncompleteMessages(t *testing.T) {
	tests := []string{
		`{"t":"move"}`,
		`{"t":"move","nx":0.5}`,
		`{"t":"keyDown"}`,
		`{"t":"keyUp","key":""}`,
		`not json`,
	}
	for _, frame := range tests {
		if _, err := Decode([]byte(frame), true); err == nil {
			t.Errorf("Expected error for %s", frame)
		}
	}
}

type recordingChannel struct {
	text   []string
	binary [][]byte
}

func (c *recordingChannel) SendText(s string) error {
	c.text = append(c.text, s)
	return nil
}

func (c *recordingChannel) Send(data []byte) error {
	c.binary = append(c.binary, data)
	return nil
}

func TestSend(t *testing.T) {
	ch := &recordingChannel{}

	if err := Send(ch, TypeText("a"), false); err != nil {
		t.Fatalf("Send text failed: %v", err)
	}
	if err := Send(ch, Scroll(0, 120), true); err != nil {
		t.Fatalf("Send binary failed: %v", err)
	}

	if len(ch.text) != 1 || ch.text[0] != `{"t":"type","text":"a"}` {
		t.Errorf("Unexpected text frames %v", ch.text)
	}
	if len(ch.binary) != 1 {
		t.Fatalf("Expected 1 binary frame, got %d", len(ch.binary))
	}

	if err := Send(nil, TypeText("a"), false); !errors.Is(err, remote.ErrChannelNotOpen) {
		t.Errorf("Expected ErrChannelNotOpen, got %v", err)
	}
}
