// Package observability holds the Prometheus collectors shared by the
// alerting engine and the delivery orchestrator.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "alertflow"

// Policy evaluation outcomes recorded per (event, policy) pair.
const (
	OutcomeUnmatched  = "unmatched"
	OutcomeThrottled  = "throttled"
	OutcomeSuppressed = "suppressed"
	OutcomeFired      = "fired"
	OutcomeFailed     = "failed"
)

// Bus message directions.
const (
	DirectionIn      = "in"
	DirectionOut     = "out"
	DirectionDropped = "dropped"
)

// Metrics groups all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	EventsProcessed    *prometheus.CounterVec
	PolicyOutcomes     *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	Deliveries         *prometheus.CounterVec
	DeliveryDuration   *prometheus.HistogramVec
	MailQueueDepth     prometheus.Gauge
	BusMessages        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Events submitted to the engine, by tenant.",
		}, []string{"tenant"}),
		PolicyOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_outcomes_total",
			Help:      "Per-policy evaluation outcomes.",
		}, []string{"outcome"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_processing_seconds",
			Help:      "Wall time to process one event across all policies.",
			Buckets:   prometheus.DefBuckets,
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Provider delivery attempts by kind and resulting status.",
		}, []string{"kind", "status"}),
		DeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_seconds",
			Help:      "Provider call latency by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		MailQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mail_queue_depth",
			Help:      "Email jobs waiting for a worker.",
		}),
		BusMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_messages_total",
			Help:      "Message bus traffic by topic and direction.",
		}, []string{"topic", "direction"}),
	}

	for _, c := range []prometheus.Collector{
		m.EventsProcessed, m.PolicyOutcomes, m.EvaluationDuration,
		m.Deliveries, m.DeliveryDuration, m.MailQueueDepth, m.BusMessages,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) EventProcessed(tenant string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(tenant).Inc()
	m.EvaluationDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) PolicyOutcome(outcome string) {
	if m == nil {
		return
	}
	m.PolicyOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Delivery(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(kind, status).Inc()
	m.DeliveryDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) SetMailQueueDepth(n int) {
	if m == nil {
		return
	}
	m.MailQueueDepth.Set(float64(n))
}

func (m *Metrics) BusMessage(topic, direction string) {
	if m == nil {
		return
	}
	m.BusMessages.WithLabelValues(topic, direction).Inc()
}
