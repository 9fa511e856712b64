package rtcpkt

import (
	"errors"

	"github.com/pion/rtp"
)

// ErrRTXPayloadTooShort is returned by UnwrapRTX when the payload is
// too short to contain the OSN header (RFC 4588 §4).
var ErrRTXPayloadTooShort = errors.New("rtx payload shorter than the 2-byte OSN header")

// WrapRTX builds an RTX packet (RFC 4588) carrying original as its
// payload, addressed to rtxSSRC/rtxPayloadType with rtxSeq as its own
// independent sequence number. The original packet is not mutated.
func WrapRTX(original *rtp.Packet, rtxSSRC uint32, rtxPayloadType uint8, rtxSeq uint16) *rtp.Packet {
	payload := make([]byte, 2+len(original.Payload))
	payload[0] = byte(original.SequenceNumber >> 8)
	payload[1] = byte(original.SequenceNumber)
	copy(payload[2:], original.Payload)

	hdr := original.Header
	hdr.SSRC = rtxSSRC
	hdr.PayloadType = rtxPayloadType
	hdr.SequenceNumber = rtxSeq

	return &rtp.Packet{Header: hdr, Payload: payload}
}

// UnwrapRTX extracts the original sequence number and payload from an
// RTX packet's OSN header.
func UnwrapRTX(rtxPacket *rtp.Packet) (originalSeq uint16, payload []byte, err error) {
	if len(rtxPacket.Payload) < 2 {
		return 0, nil, ErrRTXPayloadTooShort
	}
	originalSeq = uint16(rtxPacket.Payload[0])<<8 | uint16(rtxPacket.Payload[1])
	return originalSeq, rtxPacket.Payload[2:], nil
}
