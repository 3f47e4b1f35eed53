// Package ristretto is a process-local provider on top of a ristretto cache.
// Unlike the memory provider it is bounded: MaxCost caps the number of entries
// (every entry costs 1) and the admission policy may refuse writes, which
// surface as "resource not stored".
package ristretto

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/cacheclient"
	"github.com/unkn0wn-root/cacheclient/genstore"
	"github.com/unkn0wn-root/cacheclient/internal/resolver"
	"github.com/unkn0wn-root/cacheclient/internal/validate"
)

const Name = "Ristretto"

type Config struct {
	cacheclient.Config `mapstructure:",squash" yaml:",inline"`

	// Cache is used as is when set; the sizing options below are then ignored.
	Cache *rc.Cache `mapstructure:"-" yaml:"-"`

	NumCounters int64 `mapstructure:"numCounters" yaml:"numCounters" validate:"gt=0"`
	MaxCost     int64 `mapstructure:"maxCost" yaml:"maxCost" validate:"gt=0"`
	BufferItems int64 `mapstructure:"bufferItems" yaml:"bufferItems" validate:"gt=0"`
	Metrics     bool  `mapstructure:"metrics" yaml:"metrics"`
}

// DefaultConfig holds up to 100k entries.
func DefaultConfig() Config {
	return Config{NumCounters: 1_000_000, MaxCost: 100_000, BufferItems: 64}
}

type entry struct {
	value     any
	expiresAt time.Time
}

type Provider struct {
	// mu serializes writes and read-modify-write sequences; plain reads go
	// straight to ristretto.
	mu        sync.Mutex
	c         *rc.Cache
	ownsCache bool
	r         *resolver.Resolver
	now       func() time.Time
}

var (
	_ cacheclient.Provider = (*Provider)(nil)
	_ genstore.Store       = (*Provider)(nil)
)

func New(cfg Config) (*Provider, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, cacheclient.NewConfigError(Name, err)
	}
	p := &Provider{c: cfg.Cache, now: time.Now}
	if p.c == nil {
		c, err := rc.NewCache(&rc.Config{
			NumCounters: cfg.NumCounters,
			MaxCost:     cfg.MaxCost,
			BufferItems: cfg.BufferItems,
			Metrics:     cfg.Metrics,
			// entries cost 1; MaxCost counts entries, not bytes
			IgnoreInternalCost: true,
		})
		if err != nil {
			return nil, cacheclient.NewConfigError(Name, err)
		}
		p.c, p.ownsCache = c, true
	}
	keys := genstore.NewComposer(cfg.Prefix, cfg.Separator, p).WithClock(func() time.Time { return p.now() })
	p.r = resolver.New(Name, keys, cfg.Config)
	return p, nil
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Get(ctx context.Context, key string, opts ...cacheclient.Option) cacheclient.Response {
	k, resp, ok := p.r.Key(ctx, "get", key, opts)
	if !ok {
		return resp
	}
	e, found := p.lookup(k)
	if !found {
		return cacheclient.NotFound()
	}
	return cacheclient.Success(e.value)
}

func (p *Provider) Set(ctx context.Context, key string, value any, ttl time.Duration, opts ...cacheclient.Option) cacheclient.Response {
	if err := validate.TTL("set", "ttl", ttl); err != nil {
		return cacheclient.Invalid(err.Error())
	}
	k, resp, ok := p.r.Key(ctx, "set", key, opts)
	if !ok {
		return resp
	}
	if value == nil {
		value = false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.store(k, entry{value: value, expiresAt: p.expiresAt(ttl)}) {
		return cacheclient.NotStored()
	}
	return cacheclient.Success(true)
}

func (p *Provider) Increment(ctx context.Context, key string, step, initial int64, ttl time.Duration, opts ...cacheclient.Option) cacheclient.Response {
	if err := validate.Increment("increment", step, initial); err != nil {
		return cacheclient.Invalid(err.Error())
	}
	if err := validate.TTL("increment", "ttl", ttl); err != nil {
		return cacheclient.Invalid(err.Error())
	}
	if initial > math.MaxInt64-step {
		return cacheclient.Invalid("increment: initial + step overflows")
	}
	k, resp, ok := p.r.Key(ctx, "increment", key, opts)
	if !ok {
		return resp
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	e, found := p.lookup(k)
	if !found {
		e = entry{value: initial + step, expiresAt: p.expiresAt(ttl)}
	} else {
		cur, isInt := asInt64(e.value)
		if !isInt {
			return cacheclient.Invalid(fmt.Sprintf("increment: value of %q is not an integer", key))
		}
		if cur > math.MaxInt64-step {
			return cacheclient.Invalid(fmt.Sprintf("increment: value of %q would overflow", key))
		}
		e.value = cur + step
	}
	if !p.store(k, e) {
		return cacheclient.NotStored()
	}
	return cacheclient.Success(e.value)
}

func (p *Provider) Lock(ctx context.Context, key, owner string, ttl time.Duration, opts ...cacheclient.Option) cacheclient.Response {
	if err := validate.TTL("lock", "ttl", ttl); err != nil {
		return cacheclient.Invalid(err.Error())
	}
	k, resp, ok := p.r.Key(ctx, "lock", key, opts)
	if !ok {
		return resp
	}
	var v any = true
	if owner != "" {
		v = owner
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, held := p.lookup(k); held {
		return cacheclient.Success(false)
	}
	if !p.store(k, entry{value: v, expiresAt: p.expiresAt(ttl)}) {
		return cacheclient.NotStored()
	}
	return cacheclient.Success(true)
}

func (p *Provider) LockExists(ctx context.Context, key string, opts ...cacheclient.Option) cacheclient.Response {
	k, resp, ok := p.r.Key(ctx, "lockExists", key, opts)
	if !ok {
		return resp
	}
	_, held := p.lookup(k)
	return cacheclient.Success(held)
}

func (p *Provider) Delete(ctx context.Context, key string, opts ...cacheclient.Option) cacheclient.Response {
	k, resp, ok := p.r.Key(ctx, "delete", key, opts)
	if !ok {
		return resp
	}
	return p.remove(k)
}

func (p *Provider) Flush(_ context.Context, namespace string) cacheclient.Response {
	k, resp, ok := p.r.NamespaceKey("flush", namespace)
	if !ok {
		return resp
	}
	return p.remove(k)
}

// Close drains pending writes and closes the cache if the provider created it.
func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	if p.ownsCache {
		p.c.Close()
	}
	return nil
}

// Metrics exposes ristretto's hit/miss/admission counters. Nil unless
// Config.Metrics was set (or the supplied cache collects them).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }

func (p *Provider) Generation(_ context.Context, namespaceKey string) (string, bool, error) {
	e, found := p.lookup(namespaceKey)
	if !found {
		return "", false, nil
	}
	return generationString(e.value), true, nil
}

func (p *Provider) CreateGeneration(_ context.Context, namespaceKey, gen string, ttl time.Duration) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, found := p.lookup(namespaceKey); found {
		return generationString(e.value), false, nil
	}
	if !p.store(namespaceKey, entry{value: gen, expiresAt: p.expiresAt(ttl)}) {
		return "", false, fmt.Errorf("ristretto: generation %q not admitted", namespaceKey)
	}
	return gen, true, nil
}

func (p *Provider) ReplaceGeneration(_ context.Context, namespaceKey, gen string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.store(namespaceKey, entry{value: gen, expiresAt: p.expiresAt(ttl)}) {
		return fmt.Errorf("ristretto: generation %q not admitted", namespaceKey)
	}
	return nil
}

func (p *Provider) remove(k string) cacheclient.Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, found := p.lookup(k); !found {
		return cacheclient.NotFound()
	}
	p.c.Del(k)
	return cacheclient.Success(true)
}

// lookup returns the live entry for k and drops it once expired by p.now.
func (p *Provider) lookup(k string) (entry, bool) {
	v, ok := p.c.Get(k)
	if !ok {
		return entry{}, false
	}
	e, ok := v.(entry)
	if !ok {
		// self-heal: drop unexpected entry shape
		p.c.Del(k)
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !p.now().Before(e.expiresAt) {
		p.c.Del(k)
		return entry{}, false
	}
	return e, true
}

// store writes e and waits for the write buffer so the outcome is known.
// Caller holds mu.
func (p *Provider) store(k string, e entry) bool {
	var ttl time.Duration
	if !e.expiresAt.IsZero() {
		ttl = e.expiresAt.Sub(p.now())
		if ttl <= 0 {
			return false
		}
	}
	if !p.c.SetWithTTL(k, e, 1, ttl) {
		return false
	}
	p.c.Wait()
	_, admitted := p.c.Get(k)
	return admitted
}

func (p *Provider) expiresAt(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return p.now().Add(ttl)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func generationString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
