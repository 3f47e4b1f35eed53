package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

// Protobuf stores messages of one type. Pass it to a provider through Erase;
// Set then rejects values of any other type.
//
//	codec.Erase(codec.NewProtobuf(func() *pb.Session { return new(pb.Session) }))
type Protobuf[T proto.Message] struct {
	newMsg func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{newMsg: ctor}
}

var errNoCtor = errors.New("codec: protobuf codec built without a message constructor")

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	if c.newMsg == nil {
		var zero T
		return zero, errNoCtor
	}
	m := c.newMsg()
	return m, proto.Unmarshal(b, m)
}
