// Package metrics exposes Prometheus collectors for the command pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "splitchat"

// Outcome labels for FlowRequests.
const (
	OutcomeApplied  = "applied"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	flowRequests  *prometheus.CounterVec
	flowDuration  *prometheus.HistogramVec
	flowsInFlight *prometheus.GaugeVec
	billVersion   prometheus.Gauge
	receiptBytes  prometheus.Histogram
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		flowRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_requests_total",
			Help:      "Submissions per flow by outcome (applied, failed, rejected).",
		}, []string{"flow", "outcome"}),
		flowDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_duration_seconds",
			Help:      "Time spent waiting on the external collaborator.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"flow"}),
		flowsInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flows_in_flight",
			Help:      "1 while a flow has a request pending.",
		}, []string{"flow"}),
		billVersion: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bill_version",
			Help:      "Current BillState version.",
		}),
		receiptBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "receipt_image_bytes",
			Help:      "Size of uploaded receipt images.",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 6),
		}),
	}
}

// ObserveRequest counts one submission outcome.
func (m *Metrics) ObserveRequest(flow, outcome string) {
	if m == nil {
		return
	}
	m.flowRequests.WithLabelValues(flow, outcome).Inc()
}

// ObserveDuration records how long a round trip took.
func (m *Metrics) ObserveDuration(flow string, d time.Duration) {
	if m == nil {
		return
	}
	m.flowDuration.WithLabelValues(flow).Observe(d.Seconds())
}

// SetInFlight marks a flow as pending or idle.
func (m *Metrics) SetInFlight(flow string, pending bool) {
	if m == nil {
		return
	}
	v := 0.0
	if pending {
		v = 1
	}
	m.flowsInFlight.WithLabelValues(flow).Set(v)
}

// SetBillVersion publishes the latest state version.
func (m *Metrics) SetBillVersion(v uint64) {
	if m == nil {
		return
	}
	m.billVersion.Set(float64(v))
}

// ObserveReceipt records an uploaded image size.
func (m *Metrics) ObserveReceipt(size int) {
	if m == nil {
		return
	}
	m.receiptBytes.Observe(float64(size))
}
