package factory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	goredis "github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/cacheclient"
	"github.com/unkn0wn-root/cacheclient/codec"
	"github.com/unkn0wn-root/cacheclient/internal/validate"
	"github.com/unkn0wn-root/cacheclient/provider/memcached"
	"github.com/unkn0wn-root/cacheclient/provider/memory"
	"github.com/unkn0wn-root/cacheclient/provider/redis"
	"github.com/unkn0wn-root/cacheclient/provider/ristretto"
)

// Config describes a provider together with the connection it needs.
//
//	provider: redis
//	codec: msgpack
//	options:
//	  prefix: app
//	redis:
//	  addrs: ["localhost:6379"]
type Config struct {
	Provider  string          `yaml:"provider" mapstructure:"provider" validate:"required"`
	Codec     string          `yaml:"codec" mapstructure:"codec"`
	Options   map[string]any  `yaml:"options" mapstructure:"options"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Memcached MemcachedConfig `yaml:"memcached" mapstructure:"memcached"`
}

type RedisConfig struct {
	// One address => single node; several => cluster; with MasterName => sentinel.
	Addrs      []string `yaml:"addrs" mapstructure:"addrs"`
	MasterName string   `yaml:"masterName" mapstructure:"masterName"`
	Username   string   `yaml:"username" mapstructure:"username"`
	Password   string   `yaml:"password" mapstructure:"password"`
	DB         int      `yaml:"db" mapstructure:"db" validate:"gte=0"`
}

type MemcachedConfig struct {
	Servers      []string      `yaml:"servers" mapstructure:"servers"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	MaxIdleConns int           `yaml:"maxIdleConns" mapstructure:"maxIdleConns" validate:"gte=0"`
}

// LoadConfig reads a YAML Config from path.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := ParseConfig(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML, rejecting unknown top-level fields.
func ParseConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse cache config: %w", err)
	}
	return cfg, nil
}

// FromConfig builds the provider named by cfg.Provider (case-insensitive).
// Network clients are dialed lazily by their libraries and owned by the
// returned provider, so Close releases them.
func FromConfig(cfg Config, xs ...Extra) (cacheclient.Provider, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, cacheclient.NewConfigError(cfg.Provider, err)
	}
	if cfg.Codec != "" {
		c, err := codec.ByName(cfg.Codec)
		if err != nil {
			return nil, cacheclient.NewConfigError(cfg.Provider, err)
		}
		// caller extras run later and win
		xs = append([]Extra{WithCodec(c)}, xs...)
	}
	opts := withOption(cfg.Options, "closeClient", true)
	switch {
	case strings.EqualFold(cfg.Provider, memory.Name):
		p, err := Memory(cfg.Options, xs...)
		if err != nil {
			return nil, err
		}
		return p, nil
	case strings.EqualFold(cfg.Provider, ristretto.Name):
		p, err := Ristretto(nil, cfg.Options, xs...)
		if err != nil {
			return nil, err
		}
		return p, nil
	case strings.EqualFold(cfg.Provider, redis.Name):
		if len(cfg.Redis.Addrs) == 0 {
			return nil, cacheclient.NewConfigError(redis.Name, errors.New(`option "redis.addrs" must list at least one address`))
		}
		rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:      cfg.Redis.Addrs,
			MasterName: cfg.Redis.MasterName,
			Username:   cfg.Redis.Username,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
		})
		p, err := Redis(rdb, opts, xs...)
		if err != nil {
			release(rdb)
			return nil, err
		}
		return p, nil
	case strings.EqualFold(cfg.Provider, memcached.Name):
		if len(cfg.Memcached.Servers) == 0 {
			return nil, cacheclient.NewConfigError(memcached.Name, errors.New(`option "memcached.servers" must list at least one server`))
		}
		mc := memcache.New(cfg.Memcached.Servers...)
		if cfg.Memcached.Timeout > 0 {
			mc.Timeout = cfg.Memcached.Timeout
		}
		if cfg.Memcached.MaxIdleConns > 0 {
			mc.MaxIdleConns = cfg.Memcached.MaxIdleConns
		}
		p, err := Memcached(mc, opts, xs...)
		if err != nil {
			release(mc)
			return nil, err
		}
		return p, nil
	}
	return nil, cacheclient.NewConfigError(cfg.Provider, fmt.Errorf("unknown provider; want one of %s, %s, %s, %s",
		memory.Name, memcached.Name, redis.Name, ristretto.Name))
}

// release closes a client dialed by FromConfig when it has a Close method.
func release(client any) {
	if c, ok := client.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

// withOption returns a copy of opts with k set unless the caller already set it.
func withOption(opts map[string]any, k string, v any) map[string]any {
	out := make(map[string]any, len(opts)+1)
	for kk, vv := range opts {
		out[kk] = vv
	}
	if _, ok := out[k]; !ok {
		out[k] = v
	}
	return out
}
