package promhooks

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matches(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	seen := 0
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != want {
				return false
			}
			seen++
		}
	}
	return seen == len(labels)
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New("app", reg)
	if err != nil {
		t.Fatal(err)
	}

	h.NamespaceCreated("Redis", "ns", "1")
	h.NamespaceCreated("Redis", "ns2", "2")
	h.NamespaceRaceLost("Redis", "ns")
	h.ConnectionFault("Memcached", "get", errors.New("down"))
	h.IncrementRetried("Memcached", "k")
	h.GarbageCollected("Memory", 3)
	h.GarbageCollected("Memory", 0)

	checks := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"app_cacheclient_namespaces_created_total", map[string]string{"provider": "Redis"}, 2},
		{"app_cacheclient_namespace_races_lost_total", map[string]string{"provider": "Redis"}, 1},
		{"app_cacheclient_connection_faults_total", map[string]string{"provider": "Memcached", "op": "get"}, 1},
		{"app_cacheclient_increment_retries_total", map[string]string{"provider": "Memcached"}, 1},
		{"app_cacheclient_gc_sweeps_total", map[string]string{"provider": "Memory", "evicted_any": "true"}, 1},
		{"app_cacheclient_gc_sweeps_total", map[string]string{"provider": "Memory", "evicted_any": "false"}, 1},
		{"app_cacheclient_gc_evicted_total", map[string]string{"provider": "Memory"}, 3},
	}
	for _, c := range checks {
		if got := counterValue(t, reg, c.name, c.labels); got != c.want {
			t.Fatalf("%s%v = %v want %v", c.name, c.labels, got, c.want)
		}
	}
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New("app", reg); err != nil {
		t.Fatal(err)
	}
	if _, err := New("app", reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
