package minis

// metrics.go is a thin abstraction over Prometheus so minis can be used with
// or without metrics. Passing a *prometheus.Registry to WithMetrics wires
// labeled collectors into it; otherwise a no-op sink is used and the hot
// path does not pay for metric updates.
//
// All metrics are shard-level; aggregate with sum()/rate() on the
// Prometheus side.
//
// ┌──────────────────────────┬──────┬────────┐
// │ Metric                   │ Type │ Labels │
// ├──────────────────────────┼──────┼────────┤
// │ minis_hits_total         │ Ctr  │ shard  │
// │ minis_misses_total       │ Ctr  │ shard  │
// │ minis_expirations_total  │ Ctr  │ shard  │
// │ minis_resizes_total      │ Ctr  │ shard  │
// │ minis_snapshot_total     │ Ctr  │ kind   │
// │ minis_sweep_seconds      │ Hist │ –      │
// └──────────────────────────┴──────┴────────┘
//
// © 2025 minis authors. MIT License.

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink abstracts away the concrete backend (Prometheus vs noop).
// Engine and its shards only know about these methods.
type metricsSink interface {
	incHit(shard uint8)
	incMiss(shard uint8)
	incExpire(shard uint8)
	incResize(shard uint8)
	incSnapshot(kind string)
	observeSweep(seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) incHit(uint8)         {}
func (noopMetrics) incMiss(uint8)        {}
func (noopMetrics) incExpire(uint8)      {}
func (noopMetrics) incResize(uint8)      {}
func (noopMetrics) incSnapshot(string)   {}
func (noopMetrics) observeSweep(float64) {}

type promMetrics struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	expirations *prometheus.CounterVec
	resizes     *prometheus.CounterVec
	snapshots   *prometheus.CounterVec
	sweep       prometheus.Histogram
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	shardLabel := []string{"shard"}

	pm := &promMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minis",
			Name:      "hits_total",
			Help:      "Number of successful key lookups.",
		}, shardLabel),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minis",
			Name:      "misses_total",
			Help:      "Number of lookups against a missing or expired key.",
		}, shardLabel),
		expirations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minis",
			Name:      "expirations_total",
			Help:      "Number of entries reclaimed by the TTL sweep.",
		}, shardLabel),
		resizes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minis",
			Name:      "resizes_total",
			Help:      "Number of incremental hash table resizes started.",
		}, shardLabel),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minis",
			Name:      "snapshot_total",
			Help:      "Number of snapshot save/load operations, by kind and outcome.",
		}, []string{"kind"}),
		sweep: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "minis",
			Name:      "sweep_seconds",
			Help:      "Duration of each TTL sweep pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(pm.hits, pm.misses, pm.expirations, pm.resizes, pm.snapshots, pm.sweep)
	return pm
}

func (m *promMetrics) incHit(shard uint8)  { m.hits.WithLabelValues(strconv.Itoa(int(shard))).Inc() }
func (m *promMetrics) incMiss(shard uint8) { m.misses.WithLabelValues(strconv.Itoa(int(shard))).Inc() }
func (m *promMetrics) incExpire(shard uint8) {
	m.expirations.WithLabelValues(strconv.Itoa(int(shard))).Inc()
}
func (m *promMetrics) incResize(shard uint8) {
	m.resizes.WithLabelValues(strconv.Itoa(int(shard))).Inc()
}
func (m *promMetrics) incSnapshot(kind string) { m.snapshots.WithLabelValues(kind).Inc() }
func (m *promMetrics) observeSweep(seconds float64) { m.sweep.Observe(seconds) }

// newMetricsSink picks the backend. reg == nil disables metrics.
func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
