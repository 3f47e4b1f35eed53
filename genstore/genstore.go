// Package genstore derives physical storage keys from logical keys and
// namespaces. A namespace's generation (epoch milliseconds, as a decimal string)
// lives in the backend under the namespace's own key:
//
//	<prefix><namespace>                       - the generation
//	<prefix><namespace><sep><gen><sep><key>   - namespaced entries
//	<prefix><key>                             - plain entries
//
// Replacing or deleting the generation orphans every entry of the old one.
package genstore

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
)

// Store abstracts the backend primitives needed for generations.
// Each provider implements it against its own keyspace.
type Store interface {
	// Generation returns the generation stored at namespaceKey; ok=false on miss.
	Generation(ctx context.Context, namespaceKey string) (gen string, ok bool, err error)
	// CreateGeneration stores gen at namespaceKey only if the key is absent, with
	// ttl (0 => no expiry). It returns the generation current afterwards and
	// whether this call created it.
	CreateGeneration(ctx context.Context, namespaceKey, gen string, ttl time.Duration) (current string, created bool, err error)
	// ReplaceGeneration stores gen at namespaceKey whatever the key holds.
	ReplaceGeneration(ctx context.Context, namespaceKey, gen string, ttl time.Duration) error
}

// Resolution is the outcome of composing one key.
type Resolution struct {
	Key          string
	NamespaceKey string // empty when no namespace was used
	Generation   string
	Created      bool // this call created the generation
	RaceLost     bool // a concurrent caller created it first
}

// Composer maps logical keys to physical keys. Safe for concurrent use.
type Composer struct {
	prefix string
	sep    string
	store  Store
	now    func() time.Time
	last   *atomic.Int64 // last generation issued by this process
}

// NewComposer returns a Composer. A non-empty prefix gets the separator appended.
func NewComposer(prefix, separator string, store Store) *Composer {
	if prefix != "" {
		prefix += separator
	}
	return &Composer{prefix: prefix, sep: separator, store: store, now: time.Now, last: new(atomic.Int64)}
}

// WithClock replaces the generation clock (tests).
func (c *Composer) WithClock(now func() time.Time) *Composer {
	cp := *c
	cp.now = now
	return &cp
}

// Prefix is the configured prefix including its trailing separator.
func (c *Composer) Prefix() string { return c.prefix }

// Plain returns the physical key for key outside any namespace.
func (c *Composer) Plain(key string) string { return c.prefix + key }

// NamespaceKey is where the namespace's generation is stored.
func (c *Composer) NamespaceKey(namespace string) string { return c.prefix + namespace }

// Resolve returns the physical key for key. With a namespace it reads the
// current generation and creates one (atomically, if absent) on first use.
func (c *Composer) Resolve(ctx context.Context, key, namespace string, namespaceTTL time.Duration) (Resolution, error) {
	if namespace == "" {
		return Resolution{Key: c.Plain(key)}, nil
	}
	nsKey := c.NamespaceKey(namespace)
	res := Resolution{NamespaceKey: nsKey}

	gen, ok, err := c.store.Generation(ctx, nsKey)
	if err != nil {
		return res, fmt.Errorf("genstore: read generation %q: %w", nsKey, err)
	}
	switch {
	case ok && isGeneration(gen):
	case ok:
		// the key holds something else (a plain value, an empty string)
		gen, err = c.replace(ctx, nsKey, namespaceTTL)
		if err != nil {
			return res, err
		}
		res.Created = true
	default:
		gen, res.Created, err = c.create(ctx, nsKey, namespaceTTL)
		if err != nil {
			return res, err
		}
		res.RaceLost = !res.Created
	}
	res.Generation = gen
	res.Key = c.prefix + namespace + c.sep + gen + c.sep + key
	return res, nil
}

func (c *Composer) create(ctx context.Context, nsKey string, ttl time.Duration) (string, bool, error) {
	// A winner's generation can expire between our failed create and the
	// re-read; one more attempt covers that window. A key that still holds no
	// usable generation afterwards is overwritten.
	for attempt := 0; attempt < 2; attempt++ {
		gen := c.next()
		cur, created, err := c.store.CreateGeneration(ctx, nsKey, gen, ttl)
		if err != nil {
			return "", false, fmt.Errorf("genstore: create generation %q: %w", nsKey, err)
		}
		if created {
			return gen, true, nil
		}
		if isGeneration(cur) {
			return cur, false, nil
		}
	}
	gen, err := c.replace(ctx, nsKey, ttl)
	return gen, err == nil, err
}

func (c *Composer) replace(ctx context.Context, nsKey string, ttl time.Duration) (string, error) {
	gen := c.next()
	if err := c.store.ReplaceGeneration(ctx, nsKey, gen, ttl); err != nil {
		return "", fmt.Errorf("genstore: replace generation %q: %w", nsKey, err)
	}
	return gen, nil
}

// isGeneration reports whether s looks like a value next() produced.
func isGeneration(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// next returns the current epoch milliseconds, bumped past the last generation
// this process issued. A flush followed by a re-create within the same
// millisecond would otherwise resurrect the flushed generation.
func (c *Composer) next() string {
	now := c.now().UnixMilli()
	for {
		last := c.last.Load()
		gen := now
		if gen <= last {
			gen = last + 1
		}
		if c.last.CompareAndSwap(last, gen) {
			return strconv.FormatInt(gen, 10)
		}
	}
}
