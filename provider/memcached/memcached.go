// Package memcached adapts a gomemcache client to cacheclient.Provider.
//
// Values are encoded with the configured codec and framed; counters and
// namespace generations are stored as bare decimal strings so memcached's incr
// and add can operate on them. Expirations are rounded up to whole seconds.
package memcached

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/cacheclient"
	"github.com/unkn0wn-root/cacheclient/codec"
	"github.com/unkn0wn-root/cacheclient/genstore"
	"github.com/unkn0wn-root/cacheclient/internal/payload"
	"github.com/unkn0wn-root/cacheclient/internal/resolver"
	"github.com/unkn0wn-root/cacheclient/internal/ttl"
	"github.com/unkn0wn-root/cacheclient/internal/validate"
)

const Name = "Memcached"

// Client is the subset of *memcache.Client the provider uses.
type Client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Add(item *memcache.Item) error
	Delete(key string) error
	Increment(key string, delta uint64) (uint64, error)
}

// InitialIncrementer is implemented by clients that can create a missing counter
// as part of the increment (binary protocol). When the client has it, Increment
// uses it instead of the incr/add/incr fallback.
type InitialIncrementer interface {
	IncrementWithInitial(key string, delta, initial uint64, expiration int32) (uint64, error)
}

type Config struct {
	cacheclient.Config `mapstructure:",squash" yaml:",inline"`

	Client Client           `mapstructure:"-" yaml:"-"`
	Codec  codec.Codec[any] `mapstructure:"-" yaml:"-"` // nil => codec.Default()
	// CloseClient closes Client on Close when it implements Close() error.
	// Set it only when the provider exclusively owns the client.
	CloseClient bool `mapstructure:"closeClient" yaml:"closeClient"`
}

type Provider struct {
	mc          Client
	codec       codec.Codec[any]
	closeClient bool
	r           *resolver.Resolver
	now         func() time.Time
}

var _ cacheclient.Provider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	if cfg.Client == nil {
		return nil, cacheclient.ErrNilClient
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, cacheclient.NewConfigError(Name, err)
	}
	p := &Provider{
		mc:          cfg.Client,
		codec:       cfg.Codec,
		closeClient: cfg.CloseClient,
		now:         time.Now,
	}
	if p.codec == nil {
		p.codec = codec.Default()
	}
	p.r = resolver.New(Name, genstore.NewComposer(cfg.Prefix, cfg.Separator, genstore.NewMemcache(cfg.Client)), cfg.Config)
	return p, nil
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Get(ctx context.Context, key string, opts ...cacheclient.Option) cacheclient.Response {
	k, resp, ok := p.r.Key(ctx, "get", key, opts)
	if !ok {
		return resp
	}
	it, err := p.mc.Get(k)
	if err != nil {
		return p.failure("get", err)
	}
	v, err := payload.Unpack(p.codec, it.Value)
	if err != nil {
		return cacheclient.Invalid(err.Error())
	}
	return cacheclient.Success(v)
}

func (p *Provider) Set(ctx context.Context, key string, value any, d time.Duration, opts ...cacheclient.Option) cacheclient.Response {
	if err := validate.TTL("set", "ttl", d); err != nil {
		return cacheclient.Invalid(err.Error())
	}
	k, resp, ok := p.r.Key(ctx, "set", key, opts)
	if !ok {
		return resp
	}
	b, err := payload.Pack(p.codec, value)
	if err != nil {
		return cacheclient.Invalid(err.Error())
	}
	if err := p.mc.Set(&memcache.Item{Key: k, Value: b, Expiration: ttl.Memcache(d, p.now())}); err != nil {
		// set has no miss or contention outcome; anything but success is a fault
		if classify(err) == resultRefused {
			return cacheclient.Invalid("set: " + err.Error())
		}
		return p.r.Fault("set", err)
	}
	return cacheclient.Success(true)
}

func (p *Provider) Increment(ctx context.Context, key string, step, initial int64, d time.Duration, opts ...cacheclient.Option) cacheclient.Response {
	if err := validate.Increment("increment", step, initial); err != nil {
		return cacheclient.Invalid(err.Error())
	}
	if err := validate.TTL("increment", "ttl", d); err != nil {
		return cacheclient.Invalid(err.Error())
	}
	if initial > math.MaxInt64-step {
		return cacheclient.Invalid("increment: initial + step overflows")
	}
	k, resp, ok := p.r.Key(ctx, "increment", key, opts)
	if !ok {
		return resp
	}
	exp := ttl.Memcache(d, p.now())

	if ii, ok := p.mc.(InitialIncrementer); ok {
		n, err := ii.IncrementWithInitial(k, uint64(step), uint64(initial), exp)
		if err != nil {
			return p.failure("increment", err)
		}
		return counter(n)
	}

	n, err := p.mc.Increment(k, uint64(step))
	switch classify(err) {
	case resultSuccess:
		return counter(n)
	case resultNotFound:
	default:
		return p.failure("increment", err)
	}

	// add never overwrites, so a concurrent creator makes it fail with not-stored
	seed := initial + step
	err = p.mc.Add(&memcache.Item{Key: k, Value: []byte(strconv.FormatInt(seed, 10)), Expiration: exp})
	switch classify(err) {
	case resultSuccess:
		return cacheclient.Success(seed)
	case resultNotStored:
		p.r.Log.Debug("counter created concurrently, retrying increment", cacheclient.Fields{
			"provider": Name, "storageKey": k,
		})
		p.r.Hooks.IncrementRetried(Name, k)
		n, err = p.mc.Increment(k, uint64(step))
		if err != nil {
			return p.failure("increment", err)
		}
		return counter(n)
	}
	return p.failure("increment", err)
}

func (p *Provider) Lock(ctx context.Context, key, owner string, d time.Duration, opts ...cacheclient.Option) cacheclient.Response {
	if err := validate.TTL("lock", "ttl", d); err != nil {
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
	b, err := payload.Pack(p.codec, v)
	if err != nil {
		return cacheclient.Invalid(err.Error())
	}
	err = p.mc.Add(&memcache.Item{Key: k, Value: b, Expiration: ttl.Memcache(d, p.now())})
	switch classify(err) {
	case resultSuccess:
		return cacheclient.Success(true)
	case resultNotStored:
		return cacheclient.Success(false)
	}
	return p.failure("lock", err)
}

func (p *Provider) LockExists(ctx context.Context, key string, opts ...cacheclient.Option) cacheclient.Response {
	k, resp, ok := p.r.Key(ctx, "lockExists", key, opts)
	if !ok {
		return resp
	}
	_, err := p.mc.Get(k)
	switch classify(err) {
	case resultSuccess:
		return cacheclient.Success(true)
	case resultNotFound:
		return cacheclient.Success(false)
	}
	return p.failure("lockExists", err)
}

func (p *Provider) Delete(ctx context.Context, key string, opts ...cacheclient.Option) cacheclient.Response {
	k, resp, ok := p.r.Key(ctx, "delete", key, opts)
	if !ok {
		return resp
	}
	return p.delete("delete", k)
}

func (p *Provider) Flush(_ context.Context, namespace string) cacheclient.Response {
	k, resp, ok := p.r.NamespaceKey("flush", namespace)
	if !ok {
		return resp
	}
	return p.delete("flush", k)
}

// Close closes the client only when the provider owns it.
func (p *Provider) Close(context.Context) error {
	if !p.closeClient {
		return nil
	}
	if c, ok := p.mc.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (p *Provider) delete(op, k string) cacheclient.Response {
	if err := p.mc.Delete(k); err != nil {
		return p.failure(op, err)
	}
	return cacheclient.Success(true)
}

func (p *Provider) failure(op string, err error) cacheclient.Response {
	switch classify(err) {
	case resultNotFound:
		return cacheclient.NotFound()
	case resultNotStored:
		return cacheclient.NotStored()
	case resultRefused:
		return cacheclient.Invalid(op + ": " + err.Error())
	}
	return p.r.Fault(op, err)
}

func counter(n uint64) cacheclient.Response {
	if n > math.MaxInt64 {
		return cacheclient.Invalid("increment: counter exceeds int64")
	}
	return cacheclient.Success(int64(n))
}

// result is the outcome of one memcached call as far as the provider cares.
type result int

const (
	resultSuccess result = iota
	resultNotFound
	resultNotStored
	resultRefused // the server answered but rejected the request (bad key, non-numeric incr)
	resultFault
)

func (r result) String() string {
	switch r {
	case resultSuccess:
		return "success"
	case resultNotFound:
		return "notFound"
	case resultNotStored:
		return "notStored"
	case resultRefused:
		return "refused"
	}
	return "fault"
}

// gomemcache reports CLIENT_ERROR lines with this prefix and no sentinel.
const clientErrorPrefix = "memcache: client error"

func classify(err error) result {
	switch {
	case err == nil:
		return resultSuccess
	case errors.Is(err, memcache.ErrCacheMiss):
		return resultNotFound
	case errors.Is(err, memcache.ErrNotStored), errors.Is(err, memcache.ErrCASConflict):
		return resultNotStored
	case errors.Is(err, memcache.ErrMalformedKey), strings.HasPrefix(err.Error(), clientErrorPrefix):
		return resultRefused
	}
	return resultFault
}
