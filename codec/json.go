package codec

import "encoding/json"

// JSON is the default codec for network providers. The zero value is ready to use.
// Decoding into any yields float64 numbers, map[string]any objects and []any arrays.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
