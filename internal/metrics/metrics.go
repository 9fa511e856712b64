// Package metrics exposes the worker's forwarding activity as
// Prometheus collectors. Grounded on pkg/telemetry/prometheus's
// counter/gauge shape (CounterVec keyed by a stable label set,
// registered once at construction) but built as a plain struct
// instead of package-level globals, since spec.md's Router owns one
// or many of these per process rather than a single global reporter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sfu_worker"

// Metrics holds the counters and gauges the forwarding engine feeds.
type Metrics struct {
	packetsSent    *prometheus.CounterVec
	bytesSent      *prometheus.CounterVec
	nackTotal      *prometheus.CounterVec
	pliTotal       *prometheus.CounterVec
	firTotal       *prometheus.CounterVec
	packetsDropped *prometheus.CounterVec

	consumerScore prometheus.Gauge
	producerScore prometheus.Gauge
}

// New builds a Metrics instance and registers its collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packet",
			Name:      "sent_total",
		}, []string{"kind"}),
		bytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packet",
			Name:      "sent_bytes_total",
		}, []string{"kind"}),
		nackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rtcp",
			Name:      "nack_total",
		}, []string{"kind"}),
		pliTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rtcp",
			Name:      "pli_total",
		}, []string{"kind"}),
		firTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rtcp",
			Name:      "fir_total",
		}, []string{"kind"}),
		packetsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packet",
			Name:      "dropped_total",
		}, []string{"kind", "reason"}),
		consumerScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quality",
			Name:      "consumer_score",
		}),
		producerScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quality",
			Name:      "producer_score",
		}),
	}

	reg.MustRegister(
		m.packetsSent,
		m.bytesSent,
		m.nackTotal,
		m.pliTotal,
		m.firTotal,
		m.packetsDropped,
		m.consumerScore,
		m.producerScore,
	)
	return m
}

// ObserveSent records one forwarded packet of the given kind ("audio"
// or "video") and its wire size.
func (m *Metrics) ObserveSent(kind string, bytes int) {
	m.packetsSent.WithLabelValues(kind).Inc()
	m.bytesSent.WithLabelValues(kind).Add(float64(bytes))
}

// ObserveNack records one processed NACK feedback packet.
func (m *Metrics) ObserveNack(kind string) {
	m.nackTotal.WithLabelValues(kind).Inc()
}

// ObserveKeyFrameRequest records one PLI or FIR request.
func (m *Metrics) ObserveKeyFrameRequest(kind string, pli bool) {
	if pli {
		m.pliTotal.WithLabelValues(kind).Inc()
	} else {
		m.firTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveDropped records one packet the codec context or the
// consumer's gating logic declined to forward, with reason being a
// short cause tag ("codec_drop", "payload_type", "sync_gated").
func (m *Metrics) ObserveDropped(kind, reason string) {
	m.packetsDropped.WithLabelValues(kind, reason).Inc()
}

// ScoreSink adapts a Metrics instance to consumer.ScoreSink, recording
// only the most recently observed scores across all consumers since
// Prometheus gauges have no per-consumer cardinality budget here.
type ScoreSink struct {
	m *Metrics
}

// NewScoreSink builds a ScoreSink over m.
func NewScoreSink(m *Metrics) *ScoreSink {
	return &ScoreSink{m: m}
}

// OnConsumerScore implements consumer.ScoreSink.
func (s *ScoreSink) OnConsumerScore(_ string, producerScore, consumerScore uint8) {
	s.m.producerScore.Set(float64(producerScore))
	s.m.consumerScore.Set(float64(consumerScore))
}
