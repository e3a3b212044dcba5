// Package metrics defines the Prometheus instrumentation for the
// conversation service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "concierge"

// ConversationMetrics tracks turn outcomes and extractor health.
type ConversationMetrics struct {
	turnsTotal        *prometheus.CounterVec
	extractorFailures prometheus.Counter
	extractorLatency  prometheus.Histogram
	activeSessions    prometheus.Gauge
}

// NewConversationMetrics registers the conversation metrics on reg.
func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	factory := promauto.With(reg)
	return &ConversationMetrics{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns processed, by intent and outcome.",
		}, []string{"intent", "outcome"}),
		extractorFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractor_failures_total",
			Help:      "Slot extraction calls that failed or returned unusable output.",
		}),
		extractorLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extractor_latency_seconds",
			Help:      "Latency of slot extraction calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently holding conversation state.",
		}),
	}
}

func (m *ConversationMetrics) ObserveTurn(intent, outcome string) {
	m.turnsTotal.WithLabelValues(intent, outcome).Inc()
}

func (m *ConversationMetrics) ObserveExtractorFailure() {
	m.extractorFailures.Inc()
}

func (m *ConversationMetrics) ObserveExtractorLatency(d time.Duration) {
	m.extractorLatency.Observe(d.Seconds())
}

func (m *ConversationMetrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}
