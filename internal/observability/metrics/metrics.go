package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics exposes counters/histograms for the webhook relay.
type RelayMetrics struct {
	webhookTotal     *prometheus.CounterVec
	actionTotal      *prometheus.CounterVec
	outboundTotal    *prometheus.CounterVec
	correlationTotal *prometheus.CounterVec
	webhookLatency   prometheus.Histogram
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Inbound webhook requests by outcome",
		}, []string{"outcome"}),
		actionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "router",
			Name:      "actions_total",
			Help:      "Updates dispatched by routing action",
		}, []string{"action"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "telegram",
			Name:      "outbound_total",
			Help:      "Bot API calls by method and status",
		}, []string{"method", "status"}),
		correlationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "router",
			Name:      "reply_correlation_total",
			Help:      "Operator reply target resolution by source",
		}, []string{"source"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "relay",
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of webhook update processing",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.actionTotal, m.outboundTotal, m.correlationTotal, m.webhookLatency)
	return m
}

func (m *RelayMetrics) ObserveWebhook(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(outcome).Inc()
	m.webhookLatency.Observe(seconds)
}

func (m *RelayMetrics) ObserveAction(action string) {
	if m == nil {
		return
	}
	m.actionTotal.WithLabelValues(action).Inc()
}

func (m *RelayMetrics) ObserveOutbound(method, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(method, status).Inc()
}

// ObserveCorrelation records how a reply target was found: store, banner or miss.
func (m *RelayMetrics) ObserveCorrelation(source string) {
	if m == nil {
		return
	}
	m.correlationTotal.WithLabelValues(source).Inc()
}
