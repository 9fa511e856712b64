package router

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"github.com/xuehw357/mediasoup/internal/consumer"
	"github.com/xuehw357/mediasoup/pkg/logger"
)

type fakeTransport struct {
	sent map[string][]rtp.Packet
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[string][]rtp.Packet)}
}

func (f *fakeTransport) SendConsumerRtpPacket(consumerID string, pkt *rtp.Packet) {
	cp := *pkt
	cp.Payload = append([]byte(nil), pkt.Payload...)
	f.sent[consumerID] = append(f.sent[consumerID], cp)
}

type fakeKeyFrameSink struct {
	requests []string
}

func (f *fakeKeyFrameSink) RequestProducerKeyFrame(producerID string, _ uint32) {
	f.requests = append(f.requests, producerID)
}

type fakeProducerStream struct {
	score uint8
	loss  float64
}

func (p *fakeProducerStream) Score() uint8            { return p.score }
func (p *fakeProducerStream) LossPercentage() float64 { return p.loss }

// newConsumer builds an audio Consumer wired to sink and already
// carrying a live Producer stream, so IsActive() holds without every
// test needing to seed one by hand.
func newConsumer(t *testing.T, sink consumer.Sink, id string, ssrc uint32) *consumer.Consumer {
	t.Helper()
	c, err := consumer.New(logger.Nop(), consumer.Params{
		ID:                     id,
		Kind:                   consumer.Audio,
		ConsumableRtpEncodings: []consumer.ConsumableRtpEncoding{{SSRC: 0x1}},
		SSRC:                   ssrc,
		MappedSSRC:             0x1,
		CNAME:                  "cname",
		Codec: consumer.CodecParams{
			MimeType:    "audio/opus",
			PayloadType: 100,
			ClockRate:   48000,
		},
	}, sink, nil, nil)
	require.NoError(t, err)
	c.SetProducerStream(&fakeProducerStream{})
	return c
}

func opusPacket(seq uint16, ts uint32) *rtp.Packet {
	return &rtp.Packet{
		Header:  rtp.Header{SequenceNumber: seq, Timestamp: ts, PayloadType: 100},
		Payload: []byte{1, 2, 3},
	}
}

func TestForwardFansOutToAllSubscribedConsumers(t *testing.T) {
	transport := newFakeTransport()
	r := New("r1", logger.Nop(), transport, nil, nil)
	require.NoError(t, r.AddProducer("p1", 0x1))

	c1 := newConsumer(t, r, "c1", 0xAAAA)
	c2 := newConsumer(t, r, "c2", 0xBBBB)
	require.NoError(t, r.AddConsumer("p1", c1))
	require.NoError(t, r.AddConsumer("p1", c2))

	now := time.Now()
	require.NoError(t, r.Forward("p1", opusPacket(1, 1000), now))

	require.Len(t, transport.sent["c1"], 1)
	require.Len(t, transport.sent["c2"], 1)
	require.EqualValues(t, 0xAAAA, transport.sent["c1"][0].SSRC)
	require.EqualValues(t, 0xBBBB, transport.sent["c2"][0].SSRC)
}

func TestForwardUnknownProducerReturnsError(t *testing.T) {
	r := New("r1", logger.Nop(), newFakeTransport(), nil, nil)
	err := r.Forward("missing", opusPacket(1, 1000), time.Now())
	require.ErrorIs(t, err, ErrProducerNotFound)
}

func TestAddConsumerDuplicateRejected(t *testing.T) {
	r := New("r1", logger.Nop(), newFakeTransport(), nil, nil)
	require.NoError(t, r.AddProducer("p1", 0x1))
	c1 := newConsumer(t, r, "c1", 0xAAAA)
	require.NoError(t, r.AddConsumer("p1", c1))
	require.ErrorIs(t, r.AddConsumer("p1", c1), ErrConsumerExists)
}

func TestRemoveConsumerStopsFanOut(t *testing.T) {
	transport := newFakeTransport()
	r := New("r1", logger.Nop(), transport, nil, nil)
	require.NoError(t, r.AddProducer("p1", 0x1))
	c1 := newConsumer(t, r, "c1", 0xAAAA)
	require.NoError(t, r.AddConsumer("p1", c1))
	require.NoError(t, r.RemoveConsumer("c1"))

	require.NoError(t, r.Forward("p1", opusPacket(1, 1000), time.Now()))
	require.Empty(t, transport.sent["c1"])
	require.ErrorIs(t, r.RemoveConsumer("c1"), ErrConsumerNotFound)
}

func TestProducerPausedPropagatesToConsumers(t *testing.T) {
	transport := newFakeTransport()
	r := New("r1", logger.Nop(), transport, nil, nil)
	require.NoError(t, r.AddProducer("p1", 0x1))
	c1 := newConsumer(t, r, "c1", 0xAAAA)
	require.NoError(t, r.AddConsumer("p1", c1))

	require.NoError(t, r.ProducerPaused("p1"))
	require.NoError(t, r.Forward("p1", opusPacket(1, 1000), time.Now()))
	require.Empty(t, transport.sent["c1"])

	require.NoError(t, r.ProducerResumed("p1"))
	require.NoError(t, r.Forward("p1", opusPacket(1, 1000), time.Now()))
	require.Len(t, transport.sent["c1"], 1)
}

func TestRemoveProducerDetachesConsumers(t *testing.T) {
	r := New("r1", logger.Nop(), newFakeTransport(), nil, nil)
	require.NoError(t, r.AddProducer("p1", 0x1))
	c1 := newConsumer(t, r, "c1", 0xAAAA)
	require.NoError(t, r.AddConsumer("p1", c1))

	require.NoError(t, r.RemoveProducer("p1"))
	require.ErrorIs(t, r.RemoveProducer("p1"), ErrProducerNotFound)

	err := r.AddConsumer("p1", c1)
	require.ErrorIs(t, err, ErrProducerNotFound)
}

func TestKeyFrameRequestRelaysToProducerTransport(t *testing.T) {
	keyFrames := &fakeKeyFrameSink{}
	r := New("r1", logger.Nop(), newFakeTransport(), keyFrames, nil)
	require.NoError(t, r.AddProducer("p1", 0x1))
	c1 := newConsumer(t, r, "c1", 0xAAAA)
	require.NoError(t, r.AddConsumer("p1", c1))

	r.OnConsumerKeyFrameRequested(c1, 0x1)
	require.Equal(t, []string{"p1"}, keyFrames.requests)
}

func TestNeedWorstRemoteFractionLostAggregatesAcrossConsumers(t *testing.T) {
	r := New("r1", logger.Nop(), newFakeTransport(), nil, nil)
	require.NoError(t, r.AddProducer("p1", 0x1))
	c1 := newConsumer(t, r, "c1", 0xAAAA)
	c2 := newConsumer(t, r, "c2", 0xBBBB)
	require.NoError(t, r.AddConsumer("p1", c1))
	require.NoError(t, r.AddConsumer("p1", c2))

	c1.ReceiveRtcpReceiverReport(rtcp.ReceptionReport{FractionLost: 10})
	c2.ReceiveRtcpReceiverReport(rtcp.ReceptionReport{FractionLost: 200})

	worst := r.NeedWorstRemoteFractionLost("p1")
	require.EqualValues(t, 200, worst)
}

type fakeMetricsSink struct {
	sentKind  []string
	sentBytes []int
}

func (f *fakeMetricsSink) ObserveSent(kind string, bytes int) {
	f.sentKind = append(f.sentKind, kind)
	f.sentBytes = append(f.sentBytes, bytes)
}

func TestForwardObservesSentMetricsPerConsumer(t *testing.T) {
	transport := newFakeTransport()
	metrics := &fakeMetricsSink{}
	r := New("r1", logger.Nop(), transport, nil, metrics)
	require.NoError(t, r.AddProducer("p1", 0x1))

	c1 := newConsumer(t, r, "c1", 0xAAAA)
	require.NoError(t, r.AddConsumer("p1", c1))

	require.NoError(t, r.Forward("p1", opusPacket(1, 1000), time.Now()))

	require.Equal(t, []string{"audio"}, metrics.sentKind)
	require.Len(t, metrics.sentBytes, 1)
	require.Greater(t, metrics.sentBytes[0], 0)
}

func TestStatsReflectsRegistrations(t *testing.T) {
	r := New("r1", logger.Nop(), newFakeTransport(), nil, nil)
	require.NoError(t, r.AddProducer("p1", 0x1))
	require.NoError(t, r.AddProducer("p2", 0x2))
	c1 := newConsumer(t, r, "c1", 0xAAAA)
	require.NoError(t, r.AddConsumer("p1", c1))

	stats := r.Stats()
	require.Equal(t, 2, stats.ProducerCount)
	require.Equal(t, 1, stats.ConsumerCount)
}
