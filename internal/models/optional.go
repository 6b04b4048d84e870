package models

import (
	"bytes"
	"encoding/json"
)

// Optional is a tri-state field for partial updates: absent, explicit null, or a value.
// The zero value is absent.
type Optional[T any] struct {
	present bool
	null    bool
	value   T
}

// Some returns an Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{present: true, value: v}
}

// Null returns an Optional that explicitly clears the field
func Null[T any]() Optional[T] {
	return Optional[T]{present: true, null: true}
}

// Present reports whether the field was supplied at all, null included
func (o Optional[T]) Present() bool { return o.present }

// IsNull reports whether the field was supplied as an explicit null
func (o Optional[T]) IsNull() bool { return o.present && o.null }

// IsZero reports an absent field, so omitzero drops it when encoding
func (o Optional[T]) IsZero() bool { return !o.present }

// Get returns the value and whether one is set
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present && !o.null
}

// UnmarshalJSON is only invoked for keys present in the payload, which is what
// separates absent from null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.null = true
		var zero T
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}

// MarshalJSON writes null for both absent and null fields
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.present || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
