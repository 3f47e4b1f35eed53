// Package payload turns caller values into backend bytes and back for the
// network providers.
package payload

import (
	"fmt"

	"github.com/unkn0wn-root/cacheclient/codec"
	"github.com/unkn0wn-root/cacheclient/internal/wire"
)

// Pack encodes v with c and frames it, unless c is codec.Unframed. nil is
// stored as false.
func Pack(c codec.Codec[any], v any) ([]byte, error) {
	if v == nil {
		v = false
	}
	b, err := c.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if u, ok := c.(codec.Unframed); ok && u.Unframed() {
		return b, nil
	}
	return wire.Encode(b), nil
}

// Unpack reverses Pack. Unframed bytes were written by an atomic backend
// primitive (counter, namespace generation) or by an unframed codec, and come
// back as a string.
func Unpack(c codec.Codec[any], raw []byte) (any, error) {
	if !wire.IsFramed(raw) {
		return string(raw), nil
	}
	b, err := wire.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	v, err := c.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return v, nil
}
