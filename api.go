package cacheclient

import (
	"context"
	"time"
)

// Provider is the backend-agnostic cache contract. Every operation reports its
// outcome through a Response; lookups and writes never return Go errors.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the backend ("Memory", "Memcached", "Redis", "Ristretto").
	Name() string

	Get(ctx context.Context, key string, opts ...Option) Response
	// Set stores value under key. ttl <= 0 => no expiry. nil values are stored as false.
	Set(ctx context.Context, key string, value any, ttl time.Duration, opts ...Option) Response
	// Increment adds step to the integer under key, creating it as initial+step
	// when absent. ttl only applies when the key is created.
	Increment(ctx context.Context, key string, step, initial int64, ttl time.Duration, opts ...Option) Response
	// Lock creates key if absent. The result is true when the lock was acquired and
	// false under contention; contention is not a failed instruction.
	// An empty owner is stored as true.
	Lock(ctx context.Context, key, owner string, ttl time.Duration, opts ...Option) Response
	// LockExists reports whether key is present without touching it.
	LockExists(ctx context.Context, key string, opts ...Option) Response
	Delete(ctx context.Context, key string, opts ...Option) Response
	// Flush invalidates every key stored under namespace by dropping its
	// generation. Old entries are orphaned, not removed.
	Flush(ctx context.Context, namespace string) Response

	Close(ctx context.Context) error
}

// CallOptions are the per-call settings resolved from Option values.
type CallOptions struct {
	Namespace string
	// NamespaceExpiration is the TTL given to a namespace generation when it is
	// created by this call. Zero => the generation never expires.
	NamespaceExpiration time.Duration
}

type Option func(*CallOptions)

// WithNamespace scopes the key to namespace. The physical key embeds the
// namespace's current generation, so flushing the namespace orphans it.
func WithNamespace(namespace string) Option {
	return func(o *CallOptions) { o.Namespace = namespace }
}

func WithNamespaceExpiration(d time.Duration) Option {
	return func(o *CallOptions) { o.NamespaceExpiration = d }
}

// ResolveOptions applies opts in order.
func ResolveOptions(opts []Option) CallOptions {
	var o CallOptions
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// Config holds the settings shared by all providers.
type Config struct {
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	Separator string `mapstructure:"separator" yaml:"separator"`

	Logger Logger `mapstructure:"-" yaml:"-"` // nil => NopLogger
	Hooks  Hooks  `mapstructure:"-" yaml:"-"` // nil => NopHooks
}

// WithDefaults fills in the logger and hooks.
func (c Config) WithDefaults() Config {
	c.Logger = coalesce[Logger](c.Logger, NopLogger{})
	c.Hooks = coalesce[Hooks](c.Hooks, NopHooks{})
	return c
}

// coalesce returns def when v is the zero value of T; for interfaces that is nil.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
