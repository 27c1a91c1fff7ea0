package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/access-gate/gate"
)

// Metrics records gate decisions. It implements gate.Observer.
type Metrics struct {
	registry  *prometheus.Registry
	decisions *prometheus.CounterVec
	denied    *prometheus.CounterVec
}

// NewMetrics registers the gate collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accessgate_decisions_total",
				Help: "Total number of gate decisions",
			},
			[]string{"gate", "decision"},
		),
		// Denials by reason, for alerting on no_user spikes and misconfigured targets.
		denied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accessgate_denied_total",
				Help: "Total number of denied requests by reason",
			},
			[]string{"gate", "reason"},
		),
	}
}

// ObserveDecision implements gate.Observer
func (m *Metrics) ObserveDecision(_ context.Context, d gate.Decision) {
	decision := "deny"
	if d.Allowed {
		decision = "allow"
	}
	m.decisions.WithLabelValues(d.Gate, decision).Inc()
	if !d.Allowed {
		m.denied.WithLabelValues(d.Gate, d.Reason).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
