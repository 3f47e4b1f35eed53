package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/cacheclient"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	NamespaceEvery uint64
	GCEvery        uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	namespaceCtr atomic.Uint64
	gcCtr        atomic.Uint64
}

var _ cacheclient.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) NamespaceCreated(provider, namespaceKey, generation string) {
	if h.l == nil || !sample(h.opts.NamespaceEvery, &h.namespaceCtr) {
		return
	}
	h.l.Debug("cacheclient.namespace_created",
		"provider", provider,
		"key", h.redact(namespaceKey),
		"generation", generation)
}

func (h *Hooks) NamespaceRaceLost(provider, namespaceKey string) {
	if h.l == nil {
		return
	}
	h.l.Info("cacheclient.namespace_race_lost",
		"provider", provider,
		"key", h.redact(namespaceKey))
}

func (h *Hooks) ConnectionFault(provider, op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("cacheclient.connection_fault",
		"provider", provider,
		"op", op,
		"err", err)
}

func (h *Hooks) IncrementRetried(provider, storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("cacheclient.increment_retried",
		"provider", provider,
		"key", h.redact(storageKey))
}

func (h *Hooks) GarbageCollected(provider string, evicted int) {
	if h.l == nil || !sample(h.opts.GCEvery, &h.gcCtr) {
		return
	}
	h.l.Debug("cacheclient.gc",
		"provider", provider,
		"evicted", evicted)
}
