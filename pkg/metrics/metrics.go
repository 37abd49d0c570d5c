package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters the auth backbone reports. Construct one per process
// (or per test with a fresh registry).
type Metrics struct {
	Installs       *prometheus.CounterVec
	Webhooks       *prometheus.CounterVec
	AuthRejections *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Installs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appgate",
			Name:      "installs_total",
			Help:      "Install callbacks by outcome.",
		}, []string{"result"}),
		Webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appgate",
			Name:      "webhooks_total",
			Help:      "Webhook deliveries by topic and outcome.",
		}, []string{"topic", "result"}),
		AuthRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appgate",
			Name:      "auth_rejections_total",
			Help:      "Protected requests rejected by the auth gate.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.Installs, m.Webhooks, m.AuthRejections)
	}
	return m
}

// Discard returns unregistered counters.
func Discard() *Metrics { return New(nil) }

// OrDiscard returns m, or unregistered counters when m is nil.
func OrDiscard(m *Metrics) *Metrics {
	if m == nil {
		return Discard()
	}
	return m
}
