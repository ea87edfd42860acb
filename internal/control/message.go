// Package control carries pointer and keyboard events from the guest to the
// host over the "control" data channel.
package control

import (
	"fmt"
	"math"

	"github.com/BioHazard786/Deskrelay/internal/remote"
)

// Label is the data channel label both sides agree on.
const Label = "control"

// Kind is the t tag of a control message.
type Kind string

const (
	KindMove        Kind = "move"
	KindDown        Kind = "down"
	KindUp          Kind = "up"
	KindClick       Kind = "click"
	KindDoubleClick Kind = "dblclick"
	KindWheel       Kind = "wheel"
	KindKeyDown     Kind = "keyDown"
	KindKeyUp       Kind = "keyUp"
	KindType        Kind = "type"
)

func (k Kind) valid() bool {
	switch k {
	case KindMove, KindDown, KindUp, KindClick, KindDoubleClick,
		KindWheel, KindKeyDown, KindKeyUp, KindType:
		return true
	}
	return false
}

// Button names a pointer button on the wire.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// ParseButton maps a wire value onto a button. Empty and unrecognised values
// mean the left button.
func ParseButton(s string) Button {
	switch Button(s) {
	case ButtonRight:
		return ButtonRight
	case ButtonMiddle:
		return ButtonMiddle
	}
	return ButtonLeft
}

// Message is one control event. NX and NY are fractions of the screen, never
// absolute pixels.
type Message struct {
	T    Kind     `json:"t" msgpack:"t"`
	NX   *float64 `json:"nx,omitempty" msgpack:"nx,omitempty"`
	NY   *float64 `json:"ny,omitempty" msgpack:"ny,omitempty"`
	Btn  string   `json:"btn,omitempty" msgpack:"btn,omitempty"`
	DX   float64  `json:"dx,omitempty" msgpack:"dx,omitempty"`
	DY   float64  `json:"dy,omitempty" msgpack:"dy,omitempty"`
	Key  string   `json:"key,omitempty" msgpack:"key,omitempty"`
	Text string   `json:"text,omitempty" msgpack:"text,omitempty"`
}

// Point returns the clamped pointer position and whether the message has one.
func (m Message) Point() (nx, ny float64, ok bool) {
	if m.NX == nil || m.NY == nil {
		return 0, 0, false
	}
	return Clamp(*m.NX), Clamp(*m.NY), true
}

// Validate rejects messages with an unknown tag or missing required fields.
func (m Message) Validate() error {
	if !m.T.valid() {
		return remote.WrapError("validate control", remote.ErrUnknownControl, fmt.Sprintf("t=%q", m.T))
	}
	switch m.T {
	case KindMove:
		if _, _, ok := m.Point(); !ok {
			return fmt.Errorf("move without coordinates")
		}
	case KindKeyDown, KindKeyUp:
		if m.Key == "" {
			return fmt.Errorf("%s without key", m.T)
		}
	}
	return nil
}

// normalize clamps coordinates in place before transmission.
func (m *Message) normalize() {
	if m.NX != nil {
		v := Clamp(*m.NX)
		m.NX = &v
	}
	if m.NY != nil {
		v := Clamp(*m.NY)
		m.NY = &v
	}
}

// Clamp limits a screen fraction to [0,1]. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func MoveTo(nx, ny float64) Message {
	return Message{T: KindMove, NX: &nx, NY: &ny}
}

func Press(btn Button, nx, ny float64) Message {
	return Message{T: KindDown, Btn: string(btn), NX: &nx, NY: &ny}
}

func Release(btn Button, nx, ny float64) Message {
	return Message{T: KindUp, Btn: string(btn), NX: &nx, NY: &ny}
}

func ClickAt(btn Button, nx, ny float64) Message {
	return Message{T: KindClick, Btn: string(btn), NX: &nx, NY: &ny}
}

func DoubleClickAt(btn Button, nx, ny float64) Message {
	return Message{T: KindDoubleClick, Btn: string(btn), NX: &nx, NY: &ny}
}

func Scroll(dx, dy float64) Message {
	return Message{T: KindWheel, DX: dx, DY: dy}
}

func KeyDown(key string) Message {
	return Message{T: KindKeyDown, Key: key}
}

func KeyUp(key string) Message {
	return Message{T: KindKeyUp, Key: key}
}

func TypeText(text string) Message {
	return Message{T: KindType, Text: text}
}
