package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cacheclient"
	"github.com/unkn0wn-root/cacheclient/codec"
	"github.com/unkn0wn-root/cacheclient/genstore"
	"github.com/unkn0wn-root/cacheclient/internal/payload"
	"github.com/unkn0wn-root/cacheclient/internal/resolver"
	"github.com/unkn0wn-root/cacheclient/internal/validate"
)

const Name = "Redis"

type Provider struct {
	rdb         goredis.UniversalClient
	codec       codec.Codec[any]
	closeClient bool
	r           *resolver.Resolver
}

var _ cacheclient.Provider = (*Provider)(nil)

type Config struct {
	cacheclient.Config `mapstructure:",squash" yaml:",inline"`

	Client goredis.UniversalClient `mapstructure:"-" yaml:"-"`
	// nil => codec.Default()
	Codec codec.Codec[any] `mapstructure:"-" yaml:"-"`
	// set true only if this provider exclusively owns the client
	CloseClient bool `mapstructure:"closeClient" yaml:"closeClient"`
}

func New(cfg Config) (*Provider, error) {
	if cfg.Client == nil {
		return nil, cacheclient.ErrNilClient
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, cacheclient.NewConfigError(Name, err)
	}
	c := cfg.Codec
	if c == nil {
		c = codec.Default()
	}
	return &Provider{
		rdb:         cfg.Client,
		codec:       c,
		closeClient: cfg.CloseClient,
		r:           resolver.New(Name, genstore.NewComposer(cfg.Prefix, cfg.Separator, genstore.NewRedis(cfg.Client)), cfg.Config),
	}, nil
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Get(ctx context.Context, key string, opts ...cacheclient.Option) cacheclient.Response {
	k, resp, ok := p.r.Key(ctx, "get", key, opts)
	if !ok {
		return resp
	}
	cmd := p.rdb.Get(ctx, k)
	if rep := classify(cmd); rep.kind != replyOther {
		return p.respond("get", rep)
	}
	b, _ := cmd.Bytes()
	v, err := payload.Unpack(p.codec, b)
	if err != nil {
		return cacheclient.Invalid(err.Error())
	}
	return cacheclient.Success(v)
}

func (p *Provider) Set(ctx context.Context, key string, value any, ttl time.Duration, opts ...cacheclient.Option) cacheclient.Response {
	if err := validate.TTL("set", "ttl", ttl); err != nil {
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
	return p.respond("set", classify(p.rdb.Set(ctx, k, b, ttl)))
}

// Increment runs SET key initial NX [EX ttl] and INCRBY key step in one
// MULTI/EXEC, so a missing counter starts at initial and existing ones keep
// their TTL.
func (p *Provider) Increment(ctx context.Context, key string, step, initial int64, ttl time.Duration, opts ...cacheclient.Option) cacheclient.Response {
	if err := validate.Increment("increment", step, initial); err != nil {
		return cacheclient.Invalid(err.Error())
	}
	if err := validate.TTL("increment", "ttl", ttl); err != nil {
		return cacheclient.Invalid(err.Error())
	}
	k, resp, ok := p.r.Key(ctx, "increment", key, opts)
	if !ok {
		return resp
	}
	var incr *goredis.IntCmd
	_, err := p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.SetNX(ctx, k, initial, ttl)
		incr = pipe.IncrBy(ctx, k, step)
		return nil
	})
	if err != nil {
		return p.respond("increment", classifyErr(err))
	}
	return cacheclient.Success(incr.Val())
}

// Lock uses SET NX with EX/PX when ttl > 0 and SETNX otherwise.
// A nil reply or false means another holder owns the key.
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
	b, err := payload.Pack(p.codec, v)
	if err != nil {
		return cacheclient.Invalid(err.Error())
	}

	var rep reply
	if ttl > 0 {
		rep = classify(p.rdb.SetArgs(ctx, k, b, goredis.SetArgs{Mode: "NX", TTL: ttl}))
	} else {
		rep = classify(p.rdb.SetNX(ctx, k, b, 0))
	}
	switch rep.kind {
	case replyNil:
		return cacheclient.Success(false)
	case replyBool, replyStatus:
		return cacheclient.Success(rep.ok)
	}
	return p.respond("lock", rep)
}

func (p *Provider) LockExists(ctx context.Context, key string, opts ...cacheclient.Option) cacheclient.Response {
	k, resp, ok := p.r.Key(ctx, "lockExists", key, opts)
	if !ok {
		return resp
	}
	rep := classify(p.rdb.Exists(ctx, k))
	if rep.kind == replyInt {
		return cacheclient.Success(rep.n > 0)
	}
	return p.respond("lockExists", rep)
}

func (p *Provider) Delete(ctx context.Context, key string, opts ...cacheclient.Option) cacheclient.Response {
	k, resp, ok := p.r.Key(ctx, "delete", key, opts)
	if !ok {
		return resp
	}
	return p.del(ctx, "delete", k)
}

func (p *Provider) Flush(ctx context.Context, namespace string) cacheclient.Response {
	k, resp, ok := p.r.NamespaceKey("flush", namespace)
	if !ok {
		return resp
	}
	return p.del(ctx, "flush", k)
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Provider) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func (p *Provider) del(ctx context.Context, op, k string) cacheclient.Response {
	rep := classify(p.rdb.Del(ctx, k))
	if rep.kind == replyInt {
		if rep.n > 0 {
			return cacheclient.Success(true)
		}
		return cacheclient.NotFound()
	}
	return p.respond(op, rep)
}

// respond is the generic reading of a reply: bools at face value, nil is a
// miss, a status succeeds only when it is OK and anything else succeeds.
func (p *Provider) respond(op string, rep reply) cacheclient.Response {
	switch rep.kind {
	case replyNil:
		return cacheclient.NotFound()
	case replyBool:
		if rep.ok {
			return cacheclient.Success(true)
		}
		return cacheclient.NotStored()
	case replyStatus:
		if rep.ok {
			return cacheclient.Success(true)
		}
		return cacheclient.Invalid(op + ": unexpected status reply")
	case replyInt:
		return cacheclient.Success(rep.n)
	case replyOther:
		return cacheclient.Success(true)
	case replyRefused:
		return cacheclient.Invalid(op + ": " + rep.err.Error())
	}
	return p.r.Fault(op, rep.err)
}

type replyKind int

const (
	replyNil replyKind = iota
	replyBool
	replyStatus
	replyInt
	replyOther
	replyRefused // the server answered with an error reply
	replyFault   // transport failure; no reply
)

type reply struct {
	kind replyKind
	ok   bool  // replyBool, replyStatus
	n    int64 // replyInt
	err  error // replyRefused, replyFault
}

func classify(cmd goredis.Cmder) reply {
	if err := cmd.Err(); err != nil {
		return classifyErr(err)
	}
	switch c := cmd.(type) {
	case *goredis.BoolCmd:
		return reply{kind: replyBool, ok: c.Val()}
	case *goredis.StatusCmd:
		return reply{kind: replyStatus, ok: c.Val() == "OK"}
	case *goredis.IntCmd:
		return reply{kind: replyInt, n: c.Val()}
	}
	return reply{kind: replyOther}
}

func classifyErr(err error) reply {
	// redis.Nil is itself a redis.Error; test it first.
	if errors.Is(err, goredis.Nil) {
		return reply{kind: replyNil}
	}
	var rerr goredis.Error
	if errors.As(err, &rerr) {
		return reply{kind: replyRefused, err: err}
	}
	return reply{kind: replyFault, err: err}
}
