package payload

import (
	"errors"
	"testing"

	"github.com/unkn0wn-root/cacheclient/codec"
	"github.com/unkn0wn-root/cacheclient/internal/wire"
)

func TestPackUnpack(t *testing.T) {
	c := codec.Default()
	b, err := Pack(c, "my_value")
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unpack(c, b)
	if err != nil || got != "my_value" {
		t.Fatalf("got %#v err=%v", got, err)
	}
}

func TestNilBecomesFalse(t *testing.T) {
	c := codec.Default()
	b, err := Pack(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unpack(c, b)
	if err != nil || got != false {
		t.Fatalf("got %#v err=%v", got, err)
	}
}

func TestRawBytesComeBackAsString(t *testing.T) {
	got, err := Unpack(codec.Default(), []byte("1700000000000"))
	if err != nil || got != "1700000000000" {
		t.Fatalf("got %#v err=%v", got, err)
	}
}

func TestCorruptFrame(t *testing.T) {
	b := wire.Encode([]byte(`"x"`))
	b = b[:len(b)-1]
	if _, err := Unpack(codec.Default(), b); !errors.Is(err, wire.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestTextCodecStoresBareBytes(t *testing.T) {
	b, err := Pack(codec.Text{}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "5" || wire.IsFramed(b) {
		t.Fatalf("stored %q", b)
	}
	got, err := Unpack(codec.Text{}, b)
	if err != nil || got != "5" {
		t.Fatalf("got %#v err=%v", got, err)
	}
}
