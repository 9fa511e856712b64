package rtpstream

// Params describes the send-side stream a Consumer forwards onto. It
// is fixed at construction except for RTX, which a Consumer may learn
// about only after negotiation completes (SetRtx).
type Params struct {
	SSRC           uint32
	PayloadType    uint8
	MimeType       string
	ClockRate      uint32
	CNAME          string
	UseNACK        bool
	UsePLI         bool
	UseFIR         bool
	UseInBandFEC   bool
	RID            string
	RTXSSRC        uint32
	RTXPayloadType uint8
}
