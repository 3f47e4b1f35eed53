package codec

import (
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestDefaultRoundTripsScalars(t *testing.T) {
	c := Default()
	for _, v := range []any{"value", true, 3.5} {
		b, err := c.Encode(v)
		if err != nil {
			t.Fatalf("encode %v: %v", v, err)
		}
		got, err := c.Decode(b)
		if err != nil {
			t.Fatalf("decode %v: %v", v, err)
		}
		if got != v {
			t.Fatalf("got %#v want %#v", got, v)
		}
	}
}

func TestMsgpackKeepsStrings(t *testing.T) {
	c := Msgpack[any]{}
	b, err := c.Encode("owner-1")
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if got != "owner-1" {
		t.Fatalf("got %#v", got)
	}
}

func TestCBORDeterministic(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	a, err := c.Encode(map[string]int{"b": 2, "a": 1, "c": 3})
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Encode(map[string]int{"c": 3, "a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("deterministic encoding differs: %x vs %x", a, b)
	}
	got, err := c.Decode(a)
	if err != nil || got["c"] != 3 {
		t.Fatalf("decode: %v %v", got, err)
	}
}

func TestEraseRejectsForeignTypes(t *testing.T) {
	c := Erase[string](String{})
	if _, err := c.Encode(42); err == nil || !strings.Contains(err.Error(), "cannot encode int") {
		t.Fatalf("expected type error, got %v", err)
	}
	b, err := c.Encode("x")
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(b)
	if err != nil || got != "x" {
		t.Fatalf("got %#v err=%v", got, err)
	}
}

func TestEraseProtobuf(t *testing.T) {
	c := Erase[*wrapperspb.StringValue](NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }))
	b, err := c.Encode(wrapperspb.String("session"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if sv, ok := got.(*wrapperspb.StringValue); !ok || sv.GetValue() != "session" {
		t.Fatalf("got %#v", got)
	}
}

func TestLimitRefusesLargePayloads(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 4}
	if _, err := c.Decode([]byte("12345")); err == nil {
		t.Fatalf("expected size error")
	}
	if got, err := c.Decode([]byte("1234")); err != nil || got != "1234" {
		t.Fatalf("got %q err=%v", got, err)
	}
}

func TestCBORDecodesStringKeyedMaps(t *testing.T) {
	c := MustCBOR[any](false)
	b, err := c.Encode(map[string]any{"name": "alice", "age": 3})
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["name"] != "alice" || m["age"] != int64(3) {
		t.Fatalf("got %#v", got)
	}
}

func TestMsgpackUsesJSONTags(t *testing.T) {
	type user struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	b, err := Msgpack[user]{}.Encode(user{Name: "alice", Age: 3})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Msgpack[any]{}.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["name"] != "alice" {
		t.Fatalf("got %#v", got)
	}
	back, err := Msgpack[user]{}.Decode(b)
	if err != nil || back.Age != 3 {
		t.Fatalf("got %+v err=%v", back, err)
	}
}

func TestText(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want string
	}{
		{"plain", "plain"},
		{[]byte("raw"), "raw"},
		{true, "1"},
		{false, "0"},
		{42, "42"},
		{int64(-7), "-7"},
		{uint64(9), "9"},
	} {
		b, err := Text{}.Encode(tc.in)
		if err != nil || string(b) != tc.want {
			t.Fatalf("Encode(%#v) = %q, %v", tc.in, b, err)
		}
		if got, _ := (Text{}).Decode(b); got != tc.want {
			t.Fatalf("Decode(%q) = %#v", b, got)
		}
	}
	if _, err := (Text{}).Encode(3.5); err == nil {
		t.Fatalf("expected error for float")
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", NameJSON, NameMsgpack, NameCBOR, NameText} {
		c, err := ByName(name)
		if err != nil || c == nil {
			t.Fatalf("ByName(%q) = %v, %v", name, c, err)
		}
	}
	if _, err := ByName("gob"); err == nil || !strings.Contains(err.Error(), `"gob"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestProtobufWithoutConstructor(t *testing.T) {
	var c Protobuf[*wrapperspb.StringValue]
	if _, err := c.Decode(nil); err == nil {
		t.Fatalf("expected error")
	}
}
