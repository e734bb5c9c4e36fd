package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics exposes counters/histograms for the symptom intake flows.
type IntakeMetrics struct {
	reportsTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
	parseFailures  *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		reportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aicare",
			Subsystem: "intake",
			Name:      "reports_total",
			Help:      "Total symptom reports persisted",
		}, []string{"channel", "alert"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aicare",
			Subsystem: "voice",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of telephony webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		parseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aicare",
			Subsystem: "voice",
			Name:      "parse_failures_total",
			Help:      "Spoken answers that could not be parsed, by question",
		}, []string{"question"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aicare",
			Subsystem: "voice",
			Name:      "active_sessions",
			Help:      "Call sessions currently live in the registry",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reportsTotal, m.webhookLatency, m.parseFailures, m.activeSessions)
	return m
}

func (m *IntakeMetrics) ObserveReport(channel, alert string) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(channel, alert).Inc()
}

func (m *IntakeMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

func (m *IntakeMetrics) ObserveParseFailure(question string) {
	if m == nil {
		return
	}
	m.parseFailures.WithLabelValues(question).Inc()
}

func (m *IntakeMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
