// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    NamespaceEvery: 10, // sample logs: ~every 10th namespace creation
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	p, _ := redis.New(redis.Config{
//	    Config: cacheclient.Config{Prefix: "app", Hooks: hooks}, // or `raw` if you don't want async
//	    Client: rdb,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/cacheclient"
)

// Hooks forwards events to inner on a bounded queue. Events are dropped when the
// queue is full so providers never block on a slow sink.
type Hooks struct {
	inner   cacheclient.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ cacheclient.Hooks = (*Hooks)(nil)

func New(inner cacheclient.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events. Events fired after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped is the number of events discarded on a full queue or after Close.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// lost a race with Close; the channel is gone
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) NamespaceCreated(p, nsKey, gen string) {
	h.try(func() { h.inner.NamespaceCreated(p, nsKey, gen) })
}
func (h *Hooks) NamespaceRaceLost(p, nsKey string) {
	h.try(func() { h.inner.NamespaceRaceLost(p, nsKey) })
}
func (h *Hooks) ConnectionFault(p, op string, err error) {
	h.try(func() { h.inner.ConnectionFault(p, op, err) })
}
func (h *Hooks) IncrementRetried(p, k string)     { h.try(func() { h.inner.IncrementRetried(p, k) }) }
func (h *Hooks) GarbageCollected(p string, n int) { h.try(func() { h.inner.GarbageCollected(p, n) }) }
