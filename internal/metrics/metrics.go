// Package metrics registers the Prometheus collectors the ledger service exports.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "splitledger"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing,
// so tests and tools can run without a registry.
type Metrics struct {
	registry *prometheus.Registry

	splitsAllocated *prometheus.CounterVec
	splitDrift      prometheus.Histogram
	suggested       prometheus.Histogram
	rpcDuration     *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		splitsAllocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splits_allocated_total",
			Help:      "Expense allocations performed, by split policy.",
		}, []string{"policy"}),
		splitDrift: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "split_drift_minor_units",
			Help:      "Absolute difference between the sum of splits and the expense total.",
			Buckets:   []float64{0, 1, 2, 5, 10, 100},
		}),
		suggested: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "suggested_transactions",
			Help:      "Number of suggested payments produced per balance simplification.",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure and result code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
	}
	reg.MustRegister(m.splitsAllocated, m.splitDrift, m.suggested, m.rpcDuration)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAllocation records one allocation and its drift in minor units.
func (m *Metrics) ObserveAllocation(policy string, drift int64) {
	if m == nil {
		return
	}
	if drift < 0 {
		drift = -drift
	}
	m.splitsAllocated.WithLabelValues(policy).Inc()
	m.splitDrift.Observe(float64(drift))
}

// ObserveSimplification records how many payments a simplification suggested.
func (m *Metrics) ObserveSimplification(transactions int) {
	if m == nil {
		return
	}
	m.suggested.Observe(float64(transactions))
}

// ObserveRPC records an RPC's latency.
func (m *Metrics) ObserveRPC(procedure, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.rpcDuration.WithLabelValues(procedure, code).Observe(d.Seconds())
}
