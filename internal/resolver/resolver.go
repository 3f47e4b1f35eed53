// Package resolver is the request front half every provider runs before touching
// its backend: validate the key and call options, compose the physical key and
// report namespace and fault events.
package resolver

import (
	"context"

	"github.com/unkn0wn-root/cacheclient"
	"github.com/unkn0wn-root/cacheclient/genstore"
	"github.com/unkn0wn-root/cacheclient/internal/validate"
)

type Resolver struct {
	Provider string
	Keys     *genstore.Composer
	Log      cacheclient.Logger
	Hooks    cacheclient.Hooks
}

func New(provider string, keys *genstore.Composer, cfg cacheclient.Config) *Resolver {
	cfg = cfg.WithDefaults()
	return &Resolver{Provider: provider, Keys: keys, Log: cfg.Logger, Hooks: cfg.Hooks}
}

// Key returns the physical key for a logical key. When ok is false the returned
// Response describes the failure and the backend must not be called.
func (r *Resolver) Key(ctx context.Context, op, key string, opts []cacheclient.Option) (string, cacheclient.Response, bool) {
	if err := validate.Key(op, key); err != nil {
		return "", cacheclient.Invalid(err.Error()), false
	}
	o := cacheclient.ResolveOptions(opts)
	if err := validate.TTL(op, "namespaceExpiration", o.NamespaceExpiration); err != nil {
		return "", cacheclient.Invalid(err.Error()), false
	}
	res, err := r.Keys.Resolve(ctx, key, o.Namespace, o.NamespaceExpiration)
	if err != nil {
		return "", r.Fault(op, err), false
	}
	switch {
	case res.Created:
		r.Log.Debug("namespace generation created", cacheclient.Fields{
			"provider": r.Provider, "namespaceKey": res.NamespaceKey, "generation": res.Generation,
		})
		r.Hooks.NamespaceCreated(r.Provider, res.NamespaceKey, res.Generation)
	case res.RaceLost:
		r.Log.Debug("namespace generation adopted from concurrent writer", cacheclient.Fields{
			"provider": r.Provider, "namespaceKey": res.NamespaceKey, "generation": res.Generation,
		})
		r.Hooks.NamespaceRaceLost(r.Provider, res.NamespaceKey)
	}
	return res.Key, cacheclient.Response{}, true
}

// NamespaceKey validates a Flush argument and returns the generation key.
func (r *Resolver) NamespaceKey(op, namespace string) (string, cacheclient.Response, bool) {
	if err := validate.Namespace(op, namespace); err != nil {
		return "", cacheclient.Invalid(err.Error()), false
	}
	return r.Keys.NamespaceKey(namespace), cacheclient.Response{}, true
}

// Fault logs and reports a backend fault and returns the matching Response.
func (r *Resolver) Fault(op string, err error) cacheclient.Response {
	r.Log.Warn("cache backend fault", cacheclient.Fields{"provider": r.Provider, "op": op, "err": err})
	r.Hooks.ConnectionFault(r.Provider, op, err)
	return cacheclient.ConnectionFailure(err)
}
