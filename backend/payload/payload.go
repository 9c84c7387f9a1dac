package payload

import (
	"bytes"
)

// Payload is a JSON encoded value carried by history events and commands.
type Payload []byte

var null = []byte("null")

func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return null, nil
	}

	return p, nil
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, null) {
		*p = nil
		return nil
	}

	*p = append((*p)[0:0], b...)
	return nil
}

// Empty reports whether the payload carries no value.
func (p Payload) Empty() bool {
	return len(p) == 0 || bytes.Equal(p, null)
}

// Equal compares the encoded form of two payloads.
func (p Payload) Equal(other Payload) bool {
	if p.Empty() || other.Empty() {
		return p.Empty() == other.Empty()
	}

	return bytes.Equal(p, other)
}
