package consumer

import "time"

// Kind is the media kind a Consumer forwards.
type Kind int

const (
	Audio Kind = iota
	Video
)

func (k Kind) String() string {
	if k == Video {
		return "video"
	}
	return "audio"
}

// State is the Consumer's observable lifecycle state, derived from
// its pause/sync flags rather than stored directly.
type State int

const (
	StateNew State = iota
	StateIdle
	StateActiveSyncing
	StateActiveStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateIdle:
		return "idle"
	case StateActiveSyncing:
		return "active-syncing"
	case StateActiveStreaming:
		return "active-streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	maxRtcpIntervalAudio = 5000 * time.Millisecond
	maxRtcpIntervalVideo = 1000 * time.Millisecond

	// rtcpEarlyEmitFactor is the early-emit heuristic on the RTCP
	// interval: a tick fires once (now-last)*1.15 >= interval, kept
	// exactly as the source enforces it for compatibility.
	rtcpEarlyEmitFactor = 1.15
)

// RtcpFeedback names one entry of a codec's rtcp_feedback list.
type RtcpFeedback struct {
	Type      string
	Parameter string
}

// CodecParams describes the media codec used by the single output
// encoding.
type CodecParams struct {
	MimeType       string
	PayloadType    uint8
	ClockRate      uint32
	UseInBandFEC   bool
	RtcpFeedback   []RtcpFeedback
	RtxPayloadType uint8
	RtxSSRC        uint32
	HasRtx         bool
}

// ConsumableRtpEncoding names one of the Producer's RTP encodings this
// Consumer may draw from. The simple Consumer forwards exactly one.
type ConsumableRtpEncoding struct {
	SSRC uint32
}

// Params configures a Consumer at construction.
type Params struct {
	ID   string
	Kind Kind

	// ConsumableRtpEncodings lists the Producer encodings offered to this
	// Consumer. New rejects anything other than exactly one: the simple
	// Consumer has no layer-selection logic to pick among several.
	ConsumableRtpEncodings []ConsumableRtpEncoding

	// SSRC is this Consumer's own output SSRC (rtp_parameters.encodings[0].ssrc).
	SSRC uint32
	// MappedSSRC is the consumable-encoding SSRC the Producer writes into
	// the Router; it identifies which upstream source to request a key
	// frame for.
	MappedSSRC uint32
	CNAME      string

	Codec CodecParams

	Paused         bool
	ProducerPaused bool
}
