package cacheclient

import (
	"errors"
	"strings"
	"testing"
)

func TestConstructors(t *testing.T) {
	cases := []struct {
		name        string
		r           Response
		instruction bool
		connection  bool
		reason      string
		kind        error
	}{
		{"success", Success(42), true, true, "", nil},
		{"not found", NotFound(), false, true, ReasonNotFound, ErrNotFound},
		{"not stored", NotStored(), false, true, ReasonNotStored, ErrNotStored},
		{"invalid", Invalid("key is required"), false, true, "key is required", ErrInvalid},
		{"connection", ConnectionFailure(errors.New("dial tcp: refused")), false, false, "connection error: dial tcp: refused", ErrConnection},
		{"connection without cause", ConnectionFailure(nil), false, false, ReasonConnection, ErrConnection},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.r
			if r.InstructionSuccess() != tc.instruction || r.ConnectionSuccess() != tc.connection {
				t.Fatalf("flags = %v/%v", r.InstructionSuccess(), r.ConnectionSuccess())
			}
			if r.ErrorMessage() != tc.reason {
				t.Fatalf("reason = %q want %q", r.ErrorMessage(), tc.reason)
			}
			if r.IsSuccessful() == r.IsFailure() {
				t.Fatalf("IsSuccessful and IsFailure agree")
			}
			if tc.kind == nil {
				if r.Err() != nil {
					t.Fatalf("Err() = %v", r.Err())
				}
				return
			}
			if !errors.Is(r.Err(), tc.kind) {
				t.Fatalf("Err() = %v, want %v", r.Err(), tc.kind)
			}
			if r.Result() != false {
				t.Fatalf("failed result = %v", r.Result())
			}
		})
	}
}

func TestErrKeepsReason(t *testing.T) {
	err := Invalid(`"step" must be greater than 0`).Err()
	if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), "step") {
		t.Fatalf("err = %v", err)
	}
	// fixed reasons are the sentinel itself
	if NotFound().Err() != ErrNotFound {
		t.Fatalf("not found err = %v", NotFound().Err())
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse("v", false, true, ReasonNotFound)
	if r.Result() != false {
		t.Fatalf("failed instruction kept result %v", r.Result())
	}
	if !errors.Is(r.Err(), ErrNotFound) {
		t.Fatalf("err = %v", r.Err())
	}
	if r := NewResponse(nil, true, false, "boom"); !errors.Is(r.Err(), ErrConnection) {
		t.Fatalf("connection flag ignored: %v", r.Err())
	}
	if r := NewResponse(nil, false, true, "odd"); !errors.Is(r.Err(), ErrInvalid) {
		t.Fatalf("other reasons are invalid: %v", r.Err())
	}
}

func TestZeroResponse(t *testing.T) {
	var r Response
	if r.IsSuccessful() || !errors.Is(r.Err(), ErrInvalid) {
		t.Fatalf("zero response = %v, %v", r, r.Err())
	}
}

func TestInt64(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want int64
		ok   bool
	}{
		{int64(5), 5, true},
		{7, 7, true},
		{uint64(9), 9, true},
		{"12", 12, true},
		{"twelve", 0, false},
		{true, 0, false},
	} {
		got, ok := Success(tc.in).Int64()
		if got != tc.want || ok != tc.ok {
			t.Fatalf("Int64(%#v) = %d, %v", tc.in, got, ok)
		}
	}
}

func TestString(t *testing.T) {
	if s := Success(true).String(); s != "ok(true)" {
		t.Fatalf("got %q", s)
	}
	if s := NotFound().String(); s != "instruction failure: resource not found" {
		t.Fatalf("got %q", s)
	}
	if s := ConnectionFailure(nil).String(); s != "connection failure: connection error" {
		t.Fatalf("got %q", s)
	}
}

func TestResolveOptions(t *testing.T) {
	o := ResolveOptions([]Option{WithNamespace("a"), nil, WithNamespace("b"), WithNamespaceExpiration(3)})
	if o.Namespace != "b" || o.NamespaceExpiration != 3 {
		t.Fatalf("got %+v", o)
	}
	if o := ResolveOptions(nil); o != (CallOptions{}) {
		t.Fatalf("got %+v", o)
	}
}

func TestConfigError(t *testing.T) {
	cause := errors.New(`option "gcDivisor" must be at least 1`)
	err := NewConfigError("Memory", cause)
	if got := err.Error(); got != `invalid configuration for cache provider "Memory": option "gcDivisor" must be at least 1` {
		t.Fatalf("got %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not unwrapped")
	}
	if got := NewConfigError("Redis").Error(); got != `invalid configuration for cache provider "Redis"` {
		t.Fatalf("got %q", got)
	}
	multi := NewConfigError("Redis", errors.New("a"), errors.New("b"))
	if !strings.Contains(multi.Error(), "a\nb") {
		t.Fatalf("got %q", multi.Error())
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.WithDefaults()
	if _, ok := c.Logger.(NopLogger); !ok {
		t.Fatalf("logger = %T", c.Logger)
	}
	if _, ok := c.Hooks.(NopHooks); !ok {
		t.Fatalf("hooks = %T", c.Hooks)
	}
}
