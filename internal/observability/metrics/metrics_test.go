package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestChannelMetricsObserve(t *testing.T) {
	m := NewChannelMetrics(prometheus.NewRegistry())
	m.ObserveInbound("message", "processed")
	m.ObserveInbound("status", "dropped")
	m.ObserveOutbound("sent")
	m.ObserveWebhookLatency("message", 0.5)
}

func TestChannelMetricsNilSafe(t *testing.T) {
	var m *ChannelMetrics
	m.ObserveInbound("message", "processed")
	m.ObserveOutbound("failed")
	m.ObserveWebhookLatency("status", 0.1)
}
