package marketplace

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
)

// OneOrMany decodes a field the marketplace sends either as a single value or as a list.
// Downstream code only ever sees a slice.
type OneOrMany[T any] []T

// UnmarshalJSON accepts an object, an array or null.
func (m *OneOrMany[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*m = nil
		return nil
	case b[0] == '[':
		var many []T
		if err := json.Unmarshal(b, &many); err != nil {
			return err
		}
		*m = many
		return nil
	}

	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*m = OneOrMany[T]{one}
	return nil
}

// UnmarshalXML appends each occurrence of the element.
func (m *OneOrMany[T]) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var one T
	if err := d.DecodeElement(&one, &start); err != nil {
		return err
	}
	*m = append(*m, one)
	return nil
}

// First returns the first element, if any.
func (m OneOrMany[T]) First() (T, bool) {
	if len(m) == 0 {
		var zero T
		return zero, false
	}
	return m[0], true
}
