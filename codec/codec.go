// Package codec serializes values for providers that store bytes (Memcached,
// Redis). Providers take a Codec[any]; wrap typed codecs with Erase.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Unframed is implemented by codecs whose bytes are stored exactly as encoded,
// without the value frame network providers otherwise add. Such values read
// back as strings, and backends can increment them in place.
type Unframed interface {
	Unframed() bool
}

// Default is the codec providers use when none is configured.
func Default() Codec[any] { return JSON[any]{} }

// Erase adapts a typed codec to Codec[any]. Encode fails for values that are not a V.
func Erase[V any](inner Codec[V]) Codec[any] { return erased[V]{inner: inner} }

type erased[V any] struct{ inner Codec[V] }

func (e erased[V]) Encode(v any) ([]byte, error) {
	tv, ok := v.(V)
	if !ok {
		var zero V
		return nil, fmt.Errorf("codec: cannot encode %T as %T", v, zero)
	}
	return e.inner.Encode(tv)
}

func (e erased[V]) Decode(b []byte) (any, error) {
	return e.inner.Decode(b)
}

// Names accepted by ByName.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
	NameCBOR    = "cbor"
	NameText    = "text"
)

// ByName returns the Codec[any] registered under name, for configuration files
// and flags. The empty name is the default codec.
func ByName(name string) (Codec[any], error) {
	switch name {
	case "", NameJSON:
		return Default(), nil
	case NameMsgpack:
		return Msgpack[any]{}, nil
	case NameCBOR:
		c, err := NewCBOR[any](true)
		if err != nil {
			return nil, err
		}
		return c, nil
	case NameText:
		return Text{}, nil
	}
	return nil, fmt.Errorf("codec: unknown codec %q (want %s, %s, %s or %s)", name, NameJSON, NameMsgpack, NameCBOR, NameText)
}
