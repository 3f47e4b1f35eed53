// Package memory is a process-local provider backed by a map owned by each
// Provider instance. Expired entries are evicted lazily when read and by a
// probabilistic sweep that runs before Get and Set.
package memory

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/unkn0wn-root/cacheclient"
	"github.com/unkn0wn-root/cacheclient/genstore"
	"github.com/unkn0wn-root/cacheclient/internal/resolver"
	"github.com/unkn0wn-root/cacheclient/internal/validate"
)

const Name = "Memory"

type Config struct {
	cacheclient.Config `mapstructure:",squash" yaml:",inline"`

	// The sweep runs with probability GCProbability/GCDivisor per Get/Set.
	// GCProbability=0 disables it; GCProbability >= GCDivisor sweeps every call.
	GCProbability int `mapstructure:"gcProbability" yaml:"gcProbability" validate:"gte=0"`
	GCDivisor     int `mapstructure:"gcDivisor" yaml:"gcDivisor" validate:"gte=1"`
}

// DefaultConfig sweeps on 1 in 100 calls.
func DefaultConfig() Config {
	return Config{GCProbability: 1, GCDivisor: 100}
}

type entry struct {
	value     any
	expiresAt time.Time // zero => no TTL
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type Provider struct {
	mu      sync.Mutex
	entries map[string]entry

	r             *resolver.Resolver
	gcProbability int
	gcDivisor     int

	now  func() time.Time
	roll func(n int) int // uniform in [0, n)
}

var (
	_ cacheclient.Provider = (*Provider)(nil)
	_ genstore.Store       = (*Provider)(nil)
)

func New(cfg Config) (*Provider, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, cacheclient.NewConfigError(Name, err)
	}
	p := &Provider{
		entries:       make(map[string]entry),
		gcProbability: cfg.GCProbability,
		gcDivisor:     cfg.GCDivisor,
		now:           time.Now,
		roll:          rand.Intn,
	}
	keys := genstore.NewComposer(cfg.Prefix, cfg.Separator, p).WithClock(func() time.Time { return p.now() })
	p.r = resolver.New(Name, keys, cfg.Config)
	return p, nil
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Get(ctx context.Context, key string, opts ...cacheclient.Option) cacheclient.Response {
	p.collectGarbage()
	k, resp, ok := p.r.Key(ctx, "get", key, opts)
	if !ok {
		return resp
	}
	p.mu.Lock()
	defer p.mu.Unlock()
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
	p.collectGarbage()
	k, resp, ok := p.r.Key(ctx, "set", key, opts)
	if !ok {
		return resp
	}
	if value == nil {
		value = false
	}
	p.mu.Lock()
	p.entries[k] = entry{value: value, expiresAt: p.expiresAt(ttl)}
	p.mu.Unlock()
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
		n := initial + step
		p.entries[k] = entry{value: n, expiresAt: p.expiresAt(ttl)}
		return cacheclient.Success(n)
	}
	cur, isInt := asInt64(e.value)
	if !isInt {
		return cacheclient.Invalid(fmt.Sprintf("increment: value of %q is not an integer", key))
	}
	if cur > math.MaxInt64-step {
		return cacheclient.Invalid(fmt.Sprintf("increment: value of %q would overflow", key))
	}
	e.value = cur + step
	p.entries[k] = e
	return cacheclient.Success(cur + step)
}

func (p *Provider) Lock(ctx context.Context, key, owner string, ttl time.Duration, opts ...cacheclient.Option) cacheclient.Response {
	if err := validate.TTL("lock", "ttl", ttl); err != nil {
		return cacheclient.Invalid(err.Error())
	}
	k, resp, ok := p.r.Key(ctx, "lock", key, opts)
	if !ok {
		return resp
	}
	var value any = true
	if owner != "" {
		value = owner
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, held := p.lookup(k); held {
		return cacheclient.Success(false)
	}
	p.entries[k] = entry{value: value, expiresAt: p.expiresAt(ttl)}
	return cacheclient.Success(true)
}

func (p *Provider) LockExists(ctx context.Context, key string, opts ...cacheclient.Option) cacheclient.Response {
	k, resp, ok := p.r.Key(ctx, "lockExists", key, opts)
	if !ok {
		return resp
	}
	p.mu.Lock()
	defer p.mu.Unlock()
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

func (p *Provider) Close(context.Context) error {
	p.mu.Lock()
	p.entries = make(map[string]entry)
	p.mu.Unlock()
	return nil
}

// Generation implements genstore.Store on the provider's own map.
func (p *Provider) Generation(_ context.Context, namespaceKey string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
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
	p.entries[namespaceKey] = entry{value: gen, expiresAt: p.expiresAt(ttl)}
	return gen, true, nil
}

func (p *Provider) ReplaceGeneration(_ context.Context, namespaceKey, gen string, ttl time.Duration) error {
	p.mu.Lock()
	p.entries[namespaceKey] = entry{value: gen, expiresAt: p.expiresAt(ttl)}
	p.mu.Unlock()
	return nil
}

func (p *Provider) remove(k string) cacheclient.Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, found := p.lookup(k); !found {
		return cacheclient.NotFound()
	}
	delete(p.entries, k)
	return cacheclient.Success(true)
}

// lookup returns the live entry for k, evicting it if expired. Caller holds mu.
func (p *Provider) lookup(k string) (entry, bool) {
	e, ok := p.entries[k]
	if !ok {
		return entry{}, false
	}
	if e.expired(p.now()) {
		delete(p.entries, k)
		return entry{}, false
	}
	return e, true
}

func (p *Provider) expiresAt(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return p.now().Add(ttl)
}

// collectGarbage sweeps every expired entry with probability gcProbability/gcDivisor.
func (p *Provider) collectGarbage() {
	if p.gcProbability <= 0 || p.roll(p.gcDivisor) >= p.gcProbability {
		return
	}
	now := p.now()
	evicted := 0
	p.mu.Lock()
	for k, e := range p.entries {
		if e.expired(now) {
			delete(p.entries, k)
			evicted++
		}
	}
	p.mu.Unlock()
	p.r.Log.Debug("memory gc sweep", cacheclient.Fields{"provider": Name, "evicted": evicted})
	p.r.Hooks.GarbageCollected(Name, evicted)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
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
