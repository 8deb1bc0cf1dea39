// Package metrics exposes dispatcher activity as Prometheus metrics on a
// private registry.
package metrics

import (
	"context"
	"net/http"

	"netmcp/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "netmcp"

// Collector implements device.Observer.
type Collector struct {
	registry *prometheus.Registry

	// InvocationsTotal counts finished invocations by capability and outcome.
	InvocationsTotal *prometheus.CounterVec
	// InvocationDuration is the invocation latency in seconds.
	InvocationDuration *prometheus.HistogramVec
	// SessionsOpen is the number of live device sessions per host.
	SessionsOpen *prometheus.GaugeVec
	// CacheLookupsTotal counts resolution cache lookups by result (hit|miss).
	CacheLookupsTotal *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		InvocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Device capability invocations by capability and outcome.",
			},
			[]string{"capability", "outcome"},
		),
		InvocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Device capability invocation latency.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"capability"},
		),
		SessionsOpen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_open",
				Help:      "Device sessions currently open.",
			},
			[]string{"hostname"},
		),
		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Resolution cache lookups by result.",
			},
			[]string{"result"},
		),
	}
}

func (c *Collector) Resolved(hostname string, cached bool) {
	result := "miss"
	if cached {
		result = "hit"
	}
	c.CacheLookupsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) SessionOpened(hostname string) {
	c.SessionsOpen.WithLabelValues(hostname).Inc()
}

func (c *Collector) SessionClosed(hostname string) {
	c.SessionsOpen.WithLabelValues(hostname).Dec()
}

func (c *Collector) Completed(_ context.Context, inv domain.Invocation) {
	c.InvocationsTotal.WithLabelValues(string(inv.Capability), inv.Outcome()).Inc()
	c.InvocationDuration.WithLabelValues(string(inv.Capability)).Observe(inv.Duration.Seconds())
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
