package consumer

import "github.com/pion/rtp"

// Sink is the owning Transport/Router's side of the Consumer contract:
// where forwarded packets and upstream key-frame requests go. It
// replaces the virtual listener the original design dispatches
// through, as an explicit interface injected at construction.
type Sink interface {
	OnConsumerSendRtpPacket(c *Consumer, pkt *rtp.Packet)
	OnConsumerKeyFrameRequested(c *Consumer, mappedSSRC uint32)
}

// ScoreSink receives score notifications keyed by Consumer id.
type ScoreSink interface {
	OnConsumerScore(consumerID string, producerScore, consumerScore uint8)
}

// MetricsSink receives NACK, key-frame-request, and drop events for
// observability, keyed by media kind ("audio"/"video"). Injecting nil
// disables recording without any call site needing a nil check beyond
// the Consumer's own.
type MetricsSink interface {
	ObserveNack(kind string)
	ObserveKeyFrameRequest(kind string, pli bool)
	ObserveDropped(kind, reason string)
}

// ProducerStream is the read-only facade a Consumer holds on its
// upstream Producer's receive-side stream. It is a weak reference: the
// Producer may swap it out at any time via SetProducerStream, and a
// Consumer must tolerate operating with none at all.
type ProducerStream interface {
	Score() uint8
	LossPercentage() float64
}
