package converter

import (
	"github.com/usherflow/usher/backend/payload"
)

// Converter turns values into payloads and back.
type Converter interface {
	To(v any) (payload.Payload, error)
	From(data payload.Payload, vptr any) error
}

var DefaultConverter Converter = &jsonConverter{}

// Value decodes a payload into a generic JSON value. Empty payloads decode to nil.
func Value(c Converter, data payload.Payload) (any, error) {
	if data.Empty() {
		return nil, nil
	}

	var v any
	if err := c.From(data, &v); err != nil {
		return nil, err
	}

	return v, nil
}
