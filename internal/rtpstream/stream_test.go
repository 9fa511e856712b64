package rtpstream

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"github.com/xuehw357/mediasoup/pkg/logger"
)

func testPacket(seq uint16, ts uint32) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           0x1234,
			PayloadType:    96,
		},
		Payload: []byte{1, 2, 3},
	}
}

func TestReceivePacketRejectsEmptyPayload(t *testing.T) {
	s := New(logger.Nop(), Params{UseNACK: true}, nil)
	ok := s.ReceivePacket(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1}}, time.Now())
	require.False(t, ok)
	require.EqualValues(t, 1, s.GetStats().PacketsDiscarded)
}

func TestRecordDiscardedIncrementsStats(t *testing.T) {
	s := New(logger.Nop(), Params{}, nil)
	s.RecordDiscarded()
	s.RecordDiscarded()
	require.EqualValues(t, 2, s.GetStats().PacketsDiscarded)
}

func TestNackRoundTripAndRateLimit(t *testing.T) {
	base := time.Now()
	s := New(logger.Nop(), Params{UseNACK: true}, nil)

	for seq := uint16(100); seq <= 150; seq++ {
		require.True(t, s.ReceivePacket(testPacket(seq, uint32(seq)*3000), base))
	}

	nack := &rtcp.TransportLayerNack{
		Nacks: []rtcp.NackPair{{PacketID: 125}},
	}

	resent := s.ReceiveNack(nack, base.Add(5*time.Millisecond))
	require.Len(t, resent, 1)
	require.EqualValues(t, 125, resent[0].SequenceNumber)

	// second NACK for the same seq within 20ms is suppressed
	again := s.ReceiveNack(nack, base.Add(15*time.Millisecond))
	require.Empty(t, again)

	// after the rate-limit window it is eligible again
	later := s.ReceiveNack(nack, base.Add(30*time.Millisecond))
	require.Len(t, later, 1)

	require.EqualValues(t, 3, s.nackCount)
	require.EqualValues(t, 2, s.GetStats().PacketsRepaired)
}

func TestNackWithRtxWrapsAndUsesIndependentSequence(t *testing.T) {
	base := time.Now()
	s := New(logger.Nop(), Params{UseNACK: true, RTXSSRC: 0xBEEF, RTXPayloadType: 97}, nil)
	s.ReceivePacket(testPacket(10, 3000), base)

	nack := &rtcp.TransportLayerNack{Nacks: []rtcp.NackPair{{PacketID: 10}}}
	resent := s.ReceiveNack(nack, base.Add(time.Millisecond))
	require.Len(t, resent, 1)

	require.EqualValues(t, 0xBEEF, resent[0].SSRC)
	require.EqualValues(t, 97, resent[0].PayloadType)
	require.EqualValues(t, 1, resent[0].SequenceNumber)
}

func TestNackMissingSeqIsSkipped(t *testing.T) {
	s := New(logger.Nop(), Params{UseNACK: true}, nil)
	nack := &rtcp.TransportLayerNack{Nacks: []rtcp.NackPair{{PacketID: 999}}}
	require.Empty(t, s.ReceiveNack(nack, time.Now()))
}

func TestGetRtcpSenderReportNilWithoutTraffic(t *testing.T) {
	s := New(logger.Nop(), Params{ClockRate: 90000}, nil)
	require.Nil(t, s.GetRtcpSenderReport(time.Now()))
}

func TestGetRtcpSenderReportOnlyOncePerBatchOfPackets(t *testing.T) {
	now := time.Now()
	s := New(logger.Nop(), Params{ClockRate: 90000, SSRC: 55}, nil)
	s.ReceivePacket(testPacket(1, 90000), now)

	sr := s.GetRtcpSenderReport(now.Add(time.Second))
	require.NotNil(t, sr)
	require.EqualValues(t, 55, sr.SSRC)
	require.EqualValues(t, 1, sr.PacketCount)
	require.Equal(t, uint32(90000+90000), sr.RTPTime)

	require.Nil(t, s.GetRtcpSenderReport(now.Add(2*time.Second)))
}

func TestPauseSuppressesSenderReportAndNack(t *testing.T) {
	now := time.Now()
	s := New(logger.Nop(), Params{ClockRate: 90000, UseNACK: true}, nil)
	s.ReceivePacket(testPacket(1, 90000), now)
	s.Pause()

	require.Nil(t, s.GetRtcpSenderReport(now.Add(time.Second)))

	nack := &rtcp.TransportLayerNack{Nacks: []rtcp.NackPair{{PacketID: 1}}}
	require.Empty(t, s.ReceiveNack(nack, now.Add(time.Millisecond)))
}

func TestScoreEmittedOnReceiverReportDrop(t *testing.T) {
	var scores []uint8
	s := New(logger.Nop(), Params{}, func(sc uint8) { scores = append(scores, sc) })

	for i := 0; i < 5; i++ {
		s.ReceiveRtcpReceiverReport(rtcp.ReceptionReport{FractionLost: 0})
	}
	require.NotEmpty(t, scores)
	steady := scores[len(scores)-1]

	for i := 0; i < 8; i++ {
		s.ReceiveRtcpReceiverReport(rtcp.ReceptionReport{FractionLost: 64})
	}
	require.LessOrEqual(t, scores[len(scores)-1], steady-2)
}

func TestGetRateSumsTransmissionAndRetransmission(t *testing.T) {
	now := time.Now()
	s := New(logger.Nop(), Params{UseNACK: true}, nil)
	s.ReceivePacket(testPacket(1, 3000), now)
	require.Greater(t, s.GetRate(now), uint32(0))
}
