// Package wire frames codec-encoded values stored in network backends so they
// can be told apart from raw counters and namespace generations, which the
// backends must keep as plain decimal strings.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindValue byte = 1
)

const header = 4 + 1 + 1 + 4

var (
	ErrCorrupt = errors.New("cacheclient: corrupt entry")
	magic4     = [...]byte{'C', 'C', 'L', 'V'}
)

// IsFramed reports whether b starts with the frame magic. Anything else is a raw
// value written by an atomic backend primitive (INCR, ADD of a generation).
func IsFramed(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Value: magic(4) | ver(1) | kind(1=value) | vlen(u32 be) | payload(vlen)
func Encode(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(header + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindValue)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode returns the payload subslice of a framed value (zero-copy).
func Decode(b []byte) ([]byte, error) {
	if len(b) < header || !IsFramed(b) || b[4] != version || b[5] != kindValue {
		return nil, ErrCorrupt
	}
	off := 6
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // exact: no truncation, no trailing junk
		return nil, ErrCorrupt
	}
	return b[off : off+vlen], nil
}
