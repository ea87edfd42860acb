package control

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/BioHazard786/Deskrelay/internal/remote"
)

// Encode clamps and marshals m as JSON for a text frame.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.normalize()
	return json.Marshal(m)
}

// EncodeBinary clamps and marshals m as msgpack for a binary frame.
func EncodeBinary(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.normalize()
	return msgpack.Marshal(m)
}

// Decode parses a data channel frame. Text frames are JSON and binary frames
// are msgpack.
func Decode(data []byte, isString bool) (Message, error) {
	var m Message
	var err error
	if isString {
		err = json.Unmarshal(data, &m)
	} else {
		err = msgpack.Unmarshal(data, &m)
	}
	if err != nil {
		return Message{}, remote.NewError("decode control", err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Channel is the part of a data channel the encoder writes to.
type Channel interface {
	SendText(s string) error
	Send(data []byte) error
}

// Send encodes m and writes it to ch, as msgpack when binary is set.
func Send(ch Channel, m Message, binary bool) error {
	if ch == nil {
		return remote.ErrChannelNotOpen
	}
	if binary {
		data, err := EncodeBinary(m)
		if err != nil {
			return err
		}
		return ch.Send(data)
	}
	data, err := Encode(m)
	if err != nil {
		return err
	}
	return ch.SendText(string(data))
}
