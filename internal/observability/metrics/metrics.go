package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChannelMetrics exposes counters/histograms for the WhatsApp channel.
type ChannelMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewChannelMetrics(reg prometheus.Registerer) *ChannelMetrics {
	m := &ChannelMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comms",
			Subsystem: "whatsapp",
			Name:      "inbound_events_total",
			Help:      "Total inbound webhook events by kind and outcome",
		}, []string{"kind", "result"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comms",
			Subsystem: "whatsapp",
			Name:      "outbound_total",
			Help:      "Total outbound message sends",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "comms",
			Subsystem: "whatsapp",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of webhook delivery processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *ChannelMetrics) ObserveInbound(kind, result string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(kind, result).Inc()
}

func (m *ChannelMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *ChannelMetrics) ObserveWebhookLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(kind).Observe(seconds)
}
