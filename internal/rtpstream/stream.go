// Package rtpstream implements the send-side RTP stream a Consumer
// forwards onto: retransmit buffering, RTX remapping, loss/jitter
// accounting, RTCP Sender Report generation, and a health score.
//
// Grounded on mediasoup's RTC::RtpStreamSend (original_source's
// RtpStream.hpp counter set), with rate calculation modeled on the
// teacher's rtpstats sliding-window bucketing.
package rtpstream

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/xuehw357/mediasoup/internal/rtcpkt"
	"github.com/xuehw357/mediasoup/pkg/logger"
)

const (
	// nackBufferCapacity is the retransmit buffer size when NACK is
	// enabled, per the contract's 1500-entry deque.
	nackBufferCapacity = 1500
	// nackResendInterval is the minimum spacing between two
	// retransmissions of the same sequence number.
	nackResendInterval = 20 * time.Millisecond
	// rateWindow is the sliding window get_rate sums bytes over.
	rateWindow = time.Second
)

// Send is the send-side RTP stream owned by a Consumer.
type Send struct {
	logger logger.Logger
	params Params

	mu sync.Mutex

	paused bool

	buf *retransmitBuffer

	rtxSeq uint16

	lastResend map[uint16]time.Time

	packetsSent  uint64
	bytesSent    uint64
	nackCount    uint32
	pliCount     uint32
	firCount     uint32

	packetsDiscarded uint32
	packetsRepaired  uint32

	packetsLost  uint32
	fractionLost uint8

	baseSeq     uint16
	maxSeq      uint16
	cycles      uint32
	haveSeq     bool
	maxPacketTs uint32
	maxPacketMs time.Time

	lastSR      time.Time
	sentSinceSR bool

	txBucket  bucket
	rtxBucket bucket

	mon *monitor

	onScore func(score uint8)
}

// bucket is a byte-count accumulator over a trailing window, used for
// get_rate. It buckets by whole seconds rather than a precise ring so
// the hot path never allocates.
type bucket struct {
	windowStart time.Time
	windowBytes uint64
	prevBytes   uint64
}

func (b *bucket) add(now time.Time, n uint64) {
	if b.windowStart.IsZero() || now.Sub(b.windowStart) >= rateWindow {
		b.prevBytes = b.windowBytes
		b.windowBytes = 0
		b.windowStart = now
	}
	b.windowBytes += n
}

// rate returns an approximate bytes/sec figure blending the current
// and previous window, avoiding a hard reset to zero right after a
// window boundary.
func (b *bucket) rate(now time.Time) uint32 {
	if b.windowStart.IsZero() {
		return 0
	}
	elapsed := now.Sub(b.windowStart)
	if elapsed >= rateWindow {
		return 0
	}
	frac := float64(elapsed) / float64(rateWindow)
	return uint32(float64(b.prevBytes)*(1-frac) + float64(b.windowBytes))
}

// New constructs a Send stream. onScore, if non-nil, is invoked
// whenever the monitor's published score changes.
func New(log logger.Logger, params Params, onScore func(score uint8)) *Send {
	capacity := 0
	if params.UseNACK {
		capacity = nackBufferCapacity
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Send{
		logger:     log,
		params:     params,
		buf:        newRetransmitBuffer(capacity),
		lastResend: make(map[uint16]time.Time),
		mon:        newMonitor(onScore),
		onScore:    onScore,
	}
}

// SetRtx configures RTX after construction; idempotent.
func (s *Send) SetRtx(payloadType uint8, ssrc uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.RTXPayloadType = payloadType
	s.params.RTXSSRC = ssrc
}

func (s *Send) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *Send) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *Send) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// ReceivePacket records a packet this stream just forwarded. now is
// the wall-clock arrival time used for retransmit-buffer eviction and
// the SR RTP/NTP mapping.
func (s *Send) ReceivePacket(pkt *rtp.Packet, now time.Time) bool {
	if len(pkt.Payload) == 0 {
		s.logger.Warnw("dropping packet with empty payload", errEmptyPayload, "seq", pkt.SequenceNumber)
		s.mu.Lock()
		s.packetsDiscarded++
		s.mu.Unlock()
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.haveSeq {
		s.baseSeq = pkt.SequenceNumber
		s.maxSeq = pkt.SequenceNumber
		s.haveSeq = true
	} else if seqLess(s.maxSeq, pkt.SequenceNumber) {
		if pkt.SequenceNumber < s.maxSeq {
			s.cycles++
		}
		s.maxSeq = pkt.SequenceNumber
	}

	s.buf.store(pkt, now)

	s.packetsSent++
	s.bytesSent += uint64(len(pkt.Payload))
	s.txBucket.add(now, uint64(headerAndPayloadSize(pkt)))

	s.maxPacketTs = pkt.Timestamp
	s.maxPacketMs = now
	s.sentSinceSR = true

	return true
}

// ReceiveNack looks up each requested sequence in the retransmit
// buffer and returns the packets to resend, RTX-wrapped when RTX is
// configured. Sequences not found, or resent within the last 20ms,
// are silently skipped.
func (s *Send) ReceiveNack(nack *rtcp.TransportLayerNack, now time.Time) []*rtp.Packet {
	if s.paused {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*rtp.Packet
	s.nackCount++

	for _, pair := range nack.Nacks {
		for _, seq := range pair.PacketList() {
			last, resent := s.lastResend[seq]
			if resent && now.Sub(last) < nackResendInterval {
				continue
			}
			orig, ok := s.buf.lookup(seq, now)
			if !ok {
				continue
			}

			var toSend *rtp.Packet
			if s.params.RTXSSRC != 0 {
				s.rtxSeq++
				toSend = rtcpkt.WrapRTX(orig, s.params.RTXSSRC, s.params.RTXPayloadType, s.rtxSeq)
			} else {
				cp := *orig
				toSend = &cp
			}

			out = append(out, toSend)
			s.lastResend[seq] = now
			s.packetsRepaired++
			s.rtxBucket.add(now, uint64(headerAndPayloadSize(toSend)))
		}
	}

	return out
}

// RecordDiscarded counts a packet the Consumer dropped before it ever
// reached this stream: unsupported payload type, the pre-sync gate, or
// an encoding_context.encode Drop.
func (s *Send) RecordDiscarded() {
	s.mu.Lock()
	s.packetsDiscarded++
	s.mu.Unlock()
}

// ReceiveKeyFrameRequest increments the PLI or FIR counter. The
// caller is responsible for propagating the request upstream.
func (s *Send) ReceiveKeyFrameRequest(pli bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pli {
		s.pliCount++
	} else {
		s.firCount++
	}
}

// ReceiveRtcpReceiverReport feeds the remote fraction-lost value into
// the score monitor.
func (s *Send) ReceiveRtcpReceiverReport(rr rtcp.ReceptionReport) {
	s.mu.Lock()
	s.fractionLost = rr.FractionLost
	s.packetsLost = rr.TotalLost
	s.mu.Unlock()

	s.mon.observe(rr.FractionLost)
}

// GetRtcpSenderReport returns an SR describing this stream's output as
// of now, or nil if nothing has been sent since the last SR (or the
// stream is paused).
func (s *Send) GetRtcpSenderReport(now time.Time) *rtcp.SenderReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused || !s.sentSinceSR || s.maxPacketMs.IsZero() {
		return nil
	}

	elapsedMs := now.Sub(s.maxPacketMs).Milliseconds()
	rtpTime := s.maxPacketTs + uint32(elapsedMs*int64(s.params.ClockRate)/1000)

	s.lastSR = now
	s.sentSinceSR = false

	return &rtcp.SenderReport{
		SSRC:        s.params.SSRC,
		NTPTime:     toNTP(now),
		RTPTime:     rtpTime,
		PacketCount: uint32(s.packetsSent),
		OctetCount:  uint32(s.bytesSent),
	}
}

// GetRtcpSdesChunk returns this stream's CNAME chunk for batching
// alongside a Sender Report.
func (s *Send) GetRtcpSdesChunk() rtcp.SourceDescriptionChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rtcp.SourceDescriptionChunk{
		Source: s.params.SSRC,
		Items: []rtcp.SourceDescriptionItem{
			{Type: rtcp.SDESCNAME, Text: s.params.CNAME},
		},
	}
}

// GetRate returns the combined transmission and retransmission byte
// rate over the sliding window.
func (s *Send) GetRate(now time.Time) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txBucket.rate(now) + s.rtxBucket.rate(now)
}

// Score returns the monitor's most recently published score.
func (s *Send) Score() uint8 {
	return s.mon.score()
}

// LossPercentage expresses the last observed remote fraction-lost as a
// 0..100 percentage.
func (s *Send) LossPercentage() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.fractionLost) / 255 * 100
}

// ClockRate returns the stream's fixed clock rate.
func (s *Send) ClockRate() uint32 {
	return s.params.ClockRate
}

// MaxPacketTime returns the arrival time of the most recently
// forwarded packet, or the zero Time if none has been forwarded yet.
func (s *Send) MaxPacketTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxPacketMs
}

// Stats is a point-in-time snapshot matching the documented dump
// field set.
type Stats struct {
	PacketsLost      uint32 `json:"packetsLost"`
	FractionLost     uint8  `json:"fractionLost"`
	PacketsDiscarded uint32 `json:"packetsDiscarded"`
	PacketsRepaired  uint32 `json:"packetsRepaired"`
	NackCount        uint32 `json:"nackCount"`
	PliCount         uint32 `json:"pliCount"`
	FirCount         uint32 `json:"firCount"`
	Score            uint8  `json:"score"`
}

func (s *Send) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		PacketsLost:      s.packetsLost,
		FractionLost:     s.fractionLost,
		PacketsDiscarded: s.packetsDiscarded,
		PacketsRepaired:  s.packetsRepaired,
		NackCount:        s.nackCount,
		PliCount:         s.pliCount,
		FirCount:         s.firCount,
		Score:            s.mon.score(),
	}
}

func seqLess(a, b uint16) bool {
	return int16(b-a) > 0
}

func headerAndPayloadSize(pkt *rtp.Packet) int {
	return pkt.Header.MarshalSize() + len(pkt.Payload)
}

const ntpEpochOffset = 2208988800 // seconds between 1900 and 1970

func toNTP(t time.Time) uint64 {
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(float64(t.Nanosecond()) / 1e9 * (1 << 32))
	return secs<<32 | frac
}
