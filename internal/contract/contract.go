// Package contract is the behavior suite every provider must pass. Provider
// tests call Run with a constructor and a way to move their backend's clock.
package contract

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/cacheclient"
)

type Options struct {
	// New returns a fresh, empty provider.
	New func(t *testing.T) cacheclient.Provider
	// Advance moves the backend clock (and generation clock) forward by d.
	// Expiry cases are skipped when nil.
	Advance func(t *testing.T, d time.Duration)
	// SkipIncrementNonInteger skips the non-integer increment case for backends
	// that cannot refuse it without a server round trip (fakes).
	SkipIncrementNonInteger bool
}

func Run(t *testing.T, o Options) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(t *testing.T, p cacheclient.Provider, o Options)
	}{
		{"SetGetSimpleKey", setGetSimpleKey},
		{"SetGetNamespacedKey", setGetNamespacedKey},
		{"NamespacesDoNotCollide", namespacesDoNotCollide},
		{"SetGetExpiration", setGetExpiration},
		{"GetNotFound", getNotFound},
		{"InvalidKey", invalidKey},
		{"KeyExpires", keyExpires},
		{"NamespaceExpires", namespaceExpires},
		{"DeleteMissing", deleteMissing},
		{"DeleteExisting", deleteExisting},
		{"FlushMissing", flushMissing},
		{"FlushOrphansNamespace", flushOrphansNamespace},
		{"FlushRejectsEmptyNamespace", flushRejectsEmptyNamespace},
		{"IncrementCreatesAndAccumulates", incrementCreatesAndAccumulates},
		{"IncrementRejectsBadParams", incrementRejectsBadParams},
		{"IncrementNonInteger", incrementNonInteger},
		{"LockContention", lockContention},
		{"LockExpires", lockExpires},
		{"NamespaceKeyWithForeignValue", namespaceKeyWithForeignValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, o.New(t), o)
		})
	}
}

func mustSucceed(t *testing.T, what string, r cacheclient.Response) {
	t.Helper()
	if !r.IsSuccessful() {
		t.Fatalf("%s: expected success, got %v", what, r)
	}
}

func mustBeNotFound(t *testing.T, what string, r cacheclient.Response) {
	t.Helper()
	if r.InstructionSuccess() || !r.ConnectionSuccess() {
		t.Fatalf("%s: expected not-found, got %v", what, r)
	}
	if !strings.Contains(r.ErrorMessage(), "not found") || !errors.Is(r.Err(), cacheclient.ErrNotFound) {
		t.Fatalf("%s: reason=%q err=%v", what, r.ErrorMessage(), r.Err())
	}
	if r.Result() != false {
		t.Fatalf("%s: result=%#v want false", what, r.Result())
	}
}

func setGetSimpleKey(t *testing.T, p cacheclient.Provider, _ Options) {
	ctx := context.Background()
	for _, v := range []any{"my_first_value", true, false} {
		mustSucceed(t, "set", p.Set(ctx, "my_first_key", v, 0))
		got := p.Get(ctx, "my_first_key")
		mustSucceed(t, "get", got)
		if got.Result() != v {
			t.Fatalf("got %#v want %#v", got.Result(), v)
		}
	}
}

func setGetNamespacedKey(t *testing.T, p cacheclient.Provider, _ Options) {
	ctx := context.Background()
	ns := cacheclient.WithNamespace("my_namespace")
	mustSucceed(t, "set", p.Set(ctx, "my_second_key", "my_second_value", 0, ns))
	got := p.Get(ctx, "my_second_key", ns)
	mustSucceed(t, "get", got)
	if got.Result() != "my_second_value" {
		t.Fatalf("got %#v", got.Result())
	}
	// the namespace key itself holds the generation
	gen := p.Get(ctx, "my_namespace")
	mustSucceed(t, "get namespace", gen)
	s, _ := gen.Result().(string)
	if !regexp.MustCompile(`^[1-9][0-9]*$`).MatchString(s) {
		t.Fatalf("generation %#v", gen.Result())
	}
	// plain key with the same name is a different entry
	mustBeNotFound(t, "plain get", p.Get(ctx, "my_second_key"))
}

func namespacesDoNotCollide(t *testing.T, p cacheclient.Provider, _ Options) {
	ctx := context.Background()
	mustSucceed(t, "set n1", p.Set(ctx, "a", "v1", 0, cacheclient.WithNamespace("n1")))
	mustSucceed(t, "set n2", p.Set(ctx, "a", "v2", 0, cacheclient.WithNamespace("n2")))
	if got := p.Get(ctx, "a", cacheclient.WithNamespace("n1")); got.Result() != "v1" {
		t.Fatalf("n1: %v", got)
	}
	if got := p.Get(ctx, "a", cacheclient.WithNamespace("n2")); got.Result() != "v2" {
		t.Fatalf("n2: %v", got)
	}
}

func setGetExpiration(t *testing.T, p cacheclient.Provider, _ Options) {
	ctx := context.Background()
	mustSucceed(t, "set", p.Set(ctx, "my_third_key", "my_third_value", 30*time.Second))
	got := p.Get(ctx, "my_third_key")
	mustSucceed(t, "get", got)
	if got.Result() != "my_third_value" {
		t.Fatalf("got %#v", got.Result())
	}
}

func getNotFound(t *testing.T, p cacheclient.Provider, _ Options) {
	mustBeNotFound(t, "get", p.Get(context.Background(), "my_key"))
}

func invalidKey(t *testing.T, p cacheclient.Provider, _ Options) {
	ctx := context.Background()
	for name, r := range map[string]cacheclient.Response{
		"get":        p.Get(ctx, ""),
		"set":        p.Set(ctx, "", "v", 0),
		"delete":     p.Delete(ctx, ""),
		"increment":  p.Increment(ctx, "", 1, 0, 0),
		"lock":       p.Lock(ctx, "", "", 0),
		"lockExists": p.LockExists(ctx, ""),
	} {
		if r.InstructionSuccess() || !r.ConnectionSuccess() {
			t.Fatalf("%s: expected validation failure, got %v", name, r)
		}
		if !strings.Contains(r.ErrorMessage(), "non-empty") || !errors.Is(r.Err(), cacheclient.ErrInvalid) {
			t.Fatalf("%s: reason=%q", name, r.ErrorMessage())
		}
	}
	if r := p.Set(ctx, "k", "v", -time.Second); r.InstructionSuccess() || !r.ConnectionSuccess() {
		t.Fatalf("negative ttl accepted: %v", r)
	}
}

func keyExpires(t *testing.T, p cacheclient.Provider, o Options) {
	if o.Advance == nil {
		t.Skip("backend clock cannot be advanced")
	}
	ctx := context.Background()
	mustSucceed(t, "set", p.Set(ctx, "my_key", "my_value", time.Second))
	o.Advance(t, 2*time.Second)
	mustBeNotFound(t, "get after ttl", p.Get(ctx, "my_key"))
}

func namespaceExpires(t *testing.T, p cacheclient.Provider, o Options) {
	if o.Advance == nil {
		t.Skip("backend clock cannot be advanced")
	}
	ctx := context.Background()
	opts := []cacheclient.Option{
		cacheclient.WithNamespace("my_namespace"),
		cacheclient.WithNamespaceExpiration(time.Second),
	}
	// the key itself has no TTL; only its namespace generation expires
	mustSucceed(t, "set", p.Set(ctx, "my_key", "my_value", 0, opts...))
	o.Advance(t, 2*time.Second)
	mustBeNotFound(t, "get after namespace ttl", p.Get(ctx, "my_key", opts...))
}

func deleteMissing(t *testing.T, p cacheclient.Provider, _ Options) {
	mustBeNotFound(t, "delete", p.Delete(context.Background(), "my_key"))
}

func deleteExisting(t *testing.T, p cacheclient.Provider, _ Options) {
	ctx := context.Background()
	mustSucceed(t, "set", p.Set(ctx, "my_key", "my_value", 0))
	del := p.Delete(ctx, "my_key")
	mustSucceed(t, "delete", del)
	if del.Result() != true {
		t.Fatalf("delete result %#v", del.Result())
	}
	mustBeNotFound(t, "get after delete", p.Get(ctx, "my_key"))
}

func flushMissing(t *testing.T, p cacheclient.Provider, _ Options) {
	mustBeNotFound(t, "flush", p.Flush(context.Background(), "my_namespace"))
}

func flushOrphansNamespace(t *testing.T, p cacheclient.Provider, _ Options) {
	ctx := context.Background()
	ns := cacheclient.WithNamespace("my_namespace")
	mustSucceed(t, "set", p.Set(ctx, "my_key", "my_value", 0, ns))
	fl := p.Flush(ctx, "my_namespace")
	mustSucceed(t, "flush", fl)
	if fl.Result() != true {
		t.Fatalf("flush result %#v", fl.Result())
	}
	mustBeNotFound(t, "get plain", p.Get(ctx, "my_key"))
	mustBeNotFound(t, "get namespaced after flush", p.Get(ctx, "my_key", ns))
}

func flushRejectsEmptyNamespace(t *testing.T, p cacheclient.Provider, _ Options) {
	r := p.Flush(context.Background(), "")
	if r.InstructionSuccess() || !r.ConnectionSuccess() || !strings.Contains(r.ErrorMessage(), "namespace") {
		t.Fatalf("got %v", r)
	}
}

func incrementCreatesAndAccumulates(t *testing.T, p cacheclient.Provider, _ Options) {
	ctx := context.Background()
	r := p.Increment(ctx, "c", 1, 0, 0)
	mustSucceed(t, "first increment", r)
	if n, ok := r.Int64(); !ok || n != 1 {
		t.Fatalf("first increment=%#v", r.Result())
	}
	r = p.Increment(ctx, "c", 5, 100, 0) // initial is ignored once the key exists
	if n, ok := r.Int64(); !ok || n != 6 {
		t.Fatalf("second increment=%#v", r.Result())
	}
	r = p.Increment(ctx, "d", 2, 10, time.Minute, cacheclient.WithNamespace("counters"))
	if n, ok := r.Int64(); !ok || n != 12 {
		t.Fatalf("namespaced increment=%#v", r.Result())
	}
}

func incrementRejectsBadParams(t *testing.T, p cacheclient.Provider, _ Options) {
	ctx := context.Background()
	for name, r := range map[string]cacheclient.Response{
		"step=0":      p.Increment(ctx, "c", 0, 0, 0),
		"initial<0":   p.Increment(ctx, "c", 1, -1, 0),
		"negativeTTL": p.Increment(ctx, "c", 1, 0, -time.Second),
	} {
		if r.InstructionSuccess() || !r.ConnectionSuccess() {
			t.Fatalf("%s: expected validation failure, got %v", name, r)
		}
	}
	mustBeNotFound(t, "untouched", p.Get(ctx, "c"))
}

func incrementNonInteger(t *testing.T, p cacheclient.Provider, o Options) {
	if o.SkipIncrementNonInteger {
		t.Skip("backend fake cannot refuse non-integer increments")
	}
	ctx := context.Background()
	mustSucceed(t, "set", p.Set(ctx, "word", "hello", 0))
	r := p.Increment(ctx, "word", 1, 0, 0)
	if r.InstructionSuccess() || !r.ConnectionSuccess() {
		t.Fatalf("expected instruction failure, got %v", r)
	}
	if got := p.Get(ctx, "word"); got.Result() != "hello" {
		t.Fatalf("value mutated: %v", got)
	}
}

func lockContention(t *testing.T, p cacheclient.Provider, _ Options) {
	ctx := context.Background()
	if r := p.LockExists(ctx, "job"); !r.IsSuccessful() || r.Result() != false {
		t.Fatalf("lockExists before lock: %v", r)
	}
	first := p.Lock(ctx, "job", "worker-1", time.Minute)
	mustSucceed(t, "first lock", first)
	if first.Result() != true {
		t.Fatalf("first lock result %#v", first.Result())
	}
	second := p.Lock(ctx, "job", "worker-2", 0)
	mustSucceed(t, "second lock", second) // contention is not a failure
	if second.Result() != false {
		t.Fatalf("second lock result %#v", second.Result())
	}
	if r := p.LockExists(ctx, "job"); !r.IsSuccessful() || r.Result() != true {
		t.Fatalf("lockExists after lock: %v", r)
	}
	if got := p.Get(ctx, "job"); got.Result() != "worker-1" {
		t.Fatalf("owner=%#v", got.Result())
	}
	// ownerless locks hold true
	mustSucceed(t, "ownerless", p.Lock(ctx, "job2", "", 0))
	if got := p.Get(ctx, "job2"); got.Result() != true {
		t.Fatalf("ownerless value=%#v", got.Result())
	}
}

func lockExpires(t *testing.T, p cacheclient.Provider, o Options) {
	if o.Advance == nil {
		t.Skip("backend clock cannot be advanced")
	}
	ctx := context.Background()
	mustSucceed(t, "lock", p.Lock(ctx, "job", "w", time.Second))
	o.Advance(t, 2*time.Second)
	if r := p.LockExists(ctx, "job"); r.Result() != false {
		t.Fatalf("lock should have expired: %v", r)
	}
	if r := p.Lock(ctx, "job", "w2", 0); r.Result() != true {
		t.Fatalf("relock: %v", r)
	}
}

func namespaceKeyWithForeignValue(t *testing.T, p cacheclient.Provider, _ Options) {
	ctx := context.Background()
	ns := cacheclient.WithNamespace("my_namespace")
	for _, v := range []any{"", "not_a_generation", false} {
		mustSucceed(t, "plain set", p.Set(ctx, "my_namespace", v, 0))
		mustBeNotFound(t, "get", p.Get(ctx, "my_key", ns))
		mustSucceed(t, "set", p.Set(ctx, "my_key", "my_value", 0, ns))
		if got := p.Get(ctx, "my_key", ns); got.Result() != "my_value" {
			t.Fatalf("value %#v: got %v", v, got)
		}
		gen := p.Get(ctx, "my_namespace")
		if s, _ := gen.Result().(string); !regexp.MustCompile(`^[1-9][0-9]*$`).MatchString(s) {
			t.Fatalf("value %#v: generation %#v", v, gen.Result())
		}
	}
}
