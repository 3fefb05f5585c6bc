package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the dialer.
type Metrics struct {
	ActiveCalls       prometheus.Gauge
	CallEvents        *prometheus.CounterVec
	DroppedEvents     *prometheus.CounterVec
	Dispositions      *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	RejectedSteps     *prometheus.CounterVec
	TurnLatency       prometheus.Histogram
	BroadcastMessages *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of live call sessions in the registry.",
		}),
		CallEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Channel events by type.",
		}, []string{"event"}),
		DroppedEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_event_drops_total",
			Help:      "Channel events dropped because a session queue was full.",
		}, []string{"event"}),
		Dispositions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispositions_total",
			Help:      "Final call dispositions by outcome.",
		}, []string{"outcome"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "External service errors by provider and code.",
		}, []string{"provider", "code"}),
		RejectedSteps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_transitions_total",
			Help:      "State transitions rejected by the transition table.",
		}, []string{"from", "to"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end latency of one conversation turn in milliseconds.",
			Buckets:   []float64{500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
		}),
		BroadcastMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_messages_total",
			Help:      "Status events fanned out to subscribers, by type and result.",
		}, []string{"type", "result"}),
	}
}

func (m *Metrics) ObserveTurnLatency(d time.Duration) {
	m.TurnLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
