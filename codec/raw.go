package codec

import (
	"fmt"
	"strconv"
)

// String stores Go strings as their bytes.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }

// Text stores scalars as their plain text form so clients in other languages
// can read them. Get always returns a string. Anything that is not a string,
// byte slice, bool or integer is rejected on Set.
type Text struct{}

var _ Unframed = Text{}

func (Text) Unframed() bool { return true }

func (Text) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	case bool:
		// false/true as 0/1, the way most memcached clients store booleans
		if x {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	case int:
		return strconv.AppendInt(nil, int64(x), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(x), 10), nil
	case int64:
		return strconv.AppendInt(nil, x, 10), nil
	case uint64:
		return strconv.AppendUint(nil, x, 10), nil
	}
	return nil, fmt.Errorf("codec: text cannot encode %T", v)
}

func (Text) Decode(b []byte) (any, error) { return string(b), nil }
