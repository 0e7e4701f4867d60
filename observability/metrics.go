package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the control plane's Prometheus instruments
type Metrics struct {
	RoutingDecisions *prometheus.CounterVec
	Failovers        *prometheus.CounterVec
	FallbackPayloads *prometheus.CounterVec
	ProviderCalls    *prometheus.HistogramVec
	ActiveSessions   prometheus.Gauge
	SessionsExpired  prometheus.Counter
}

// NewMetrics registers the control plane instruments on the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RoutingDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicewire_routing_decisions_total",
			Help: "Routing decisions by model type, provider and fallback flag.",
		}, []string{"model_type", "provider", "fallback"}),

		Failovers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicewire_failovers_total",
			Help: "Provider failovers by model type and original provider.",
		}, []string{"model_type", "from_provider"}),

		FallbackPayloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicewire_fallback_payloads_total",
			Help: "Requests answered with the fixed fallback payload, by model type.",
		}, []string{"model_type"}),

		ProviderCalls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicewire_provider_call_seconds",
			Help:    "Connector call latency by provider and outcome.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"provider", "outcome"}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicewire_active_sessions",
			Help: "Currently active call sessions.",
		}),

		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicewire_sessions_expired_total",
			Help: "Sessions evicted by the idle cleanup sweep.",
		}),
	}
}

// NewTestMetrics returns metrics on a private registry for use in tests
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
