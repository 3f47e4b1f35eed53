// Package promhooks counts cache events with Prometheus collectors.
package promhooks

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/cacheclient"
)

// Hooks implements cacheclient.Hooks with counters labelled by provider.
type Hooks struct {
	namespacesCreated *prometheus.CounterVec
	namespaceRaces    *prometheus.CounterVec
	connectionFaults  *prometheus.CounterVec
	incrementRetries  *prometheus.CounterVec
	gcSweeps          *prometheus.CounterVec
	gcEvicted         *prometheus.CounterVec
}

var _ cacheclient.Hooks = (*Hooks)(nil)

// New creates the collectors under namespace (e.g. "app") and registers them
// with reg. A nil reg uses prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) (*Hooks, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cacheclient",
				Name:      name,
				Help:      help,
			},
			append([]string{"provider"}, labels...),
		)
	}
	h := &Hooks{
		namespacesCreated: counter("namespaces_created_total", "Namespace generations created"),
		namespaceRaces:    counter("namespace_races_lost_total", "Namespace generations adopted from a concurrent creator"),
		connectionFaults:  counter("connection_faults_total", "Operations that failed to reach the backend", "op"),
		incrementRetries:  counter("increment_retries_total", "Increments retried after losing the create race"),
		gcSweeps:          counter("gc_sweeps_total", "Garbage collection sweeps", "evicted_any"),
		gcEvicted:         counter("gc_evicted_total", "Entries evicted by garbage collection sweeps"),
	}
	for _, c := range []prometheus.Collector{
		h.namespacesCreated, h.namespaceRaces, h.connectionFaults,
		h.incrementRetries, h.gcSweeps, h.gcEvicted,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) NamespaceCreated(provider, _, _ string) {
	h.namespacesCreated.WithLabelValues(provider).Inc()
}

func (h *Hooks) NamespaceRaceLost(provider, _ string) {
	h.namespaceRaces.WithLabelValues(provider).Inc()
}

func (h *Hooks) ConnectionFault(provider, op string, _ error) {
	h.connectionFaults.WithLabelValues(provider, op).Inc()
}

func (h *Hooks) IncrementRetried(provider, _ string) {
	h.incrementRetries.WithLabelValues(provider).Inc()
}

func (h *Hooks) GarbageCollected(provider string, evicted int) {
	h.gcSweeps.WithLabelValues(provider, strconv.FormatBool(evicted > 0)).Inc()
	h.gcEvicted.WithLabelValues(provider).Add(float64(evicted))
}
