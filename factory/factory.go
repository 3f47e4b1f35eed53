// Package factory builds providers from loosely typed option maps, the form
// options take when they come from configuration files or flags.
//
//	p, err := factory.Memory(map[string]any{"prefix": "app", "gcProbability": 5})
//
// Unknown option names and values of the wrong type are rejected with a
// *cacheclient.ConfigError naming the provider.
package factory

import (
	rc "github.com/dgraph-io/ristretto"
	"github.com/go-viper/mapstructure/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cacheclient"
	"github.com/unkn0wn-root/cacheclient/codec"
	"github.com/unkn0wn-root/cacheclient/provider/memcached"
	"github.com/unkn0wn-root/cacheclient/provider/memory"
	"github.com/unkn0wn-root/cacheclient/provider/redis"
	"github.com/unkn0wn-root/cacheclient/provider/ristretto"
)

// Extra sets what an option map cannot carry.
type Extra func(*extras)

type extras struct {
	logger cacheclient.Logger
	hooks  cacheclient.Hooks
	codec  codec.Codec[any]
}

func WithLogger(l cacheclient.Logger) Extra { return func(e *extras) { e.logger = l } }
func WithHooks(h cacheclient.Hooks) Extra   { return func(e *extras) { e.hooks = h } }

// WithCodec sets the value codec of network providers. Local providers ignore it.
func WithCodec(c codec.Codec[any]) Extra { return func(e *extras) { e.codec = c } }

func collect(xs []Extra) extras {
	var e extras
	for _, x := range xs {
		if x != nil {
			x(&e)
		}
	}
	return e
}

func (e extras) apply(c *cacheclient.Config) {
	c.Logger = e.logger
	c.Hooks = e.hooks
}

func Memory(opts map[string]any, xs ...Extra) (*memory.Provider, error) {
	cfg := memory.DefaultConfig()
	if err := decode(memory.Name, opts, &cfg); err != nil {
		return nil, err
	}
	collect(xs).apply(&cfg.Config)
	return memory.New(cfg)
}

func Memcached(client memcached.Client, opts map[string]any, xs ...Extra) (*memcached.Provider, error) {
	var cfg memcached.Config
	if err := decode(memcached.Name, opts, &cfg); err != nil {
		return nil, err
	}
	e := collect(xs)
	e.apply(&cfg.Config)
	cfg.Client, cfg.Codec = client, e.codec
	return memcached.New(cfg)
}

func Redis(client goredis.UniversalClient, opts map[string]any, xs ...Extra) (*redis.Provider, error) {
	var cfg redis.Config
	if err := decode(redis.Name, opts, &cfg); err != nil {
		return nil, err
	}
	e := collect(xs)
	e.apply(&cfg.Config)
	cfg.Client, cfg.Codec = client, e.codec
	return redis.New(cfg)
}

// Ristretto wraps cache, or builds one from the sizing options when cache is nil.
func Ristretto(cache *rc.Cache, opts map[string]any, xs ...Extra) (*ristretto.Provider, error) {
	cfg := ristretto.DefaultConfig()
	if err := decode(ristretto.Name, opts, &cfg); err != nil {
		return nil, err
	}
	collect(xs).apply(&cfg.Config)
	cfg.Cache = cache
	return ristretto.New(cfg)
}

// decode copies opts onto out, refusing unknown names and lossy conversions.
func decode(provider string, opts map[string]any, out any) error {
	if len(opts) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
		Squash:      true,
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return cacheclient.NewConfigError(provider, err)
	}
	if err := dec.Decode(opts); err != nil {
		return cacheclient.NewConfigError(provider, err)
	}
	return nil
}
