package codec

// VP8 is the EncodingContext for VP8, grounded on the payload
// descriptor layout the teacher's codecmunger.VP8 parses (RFC 7741
// §4.2) but trimmed to what a simple (non-simulcast) consumer needs:
// gating on temporal layer. A simple consumer normally forwards every
// temporal layer (MaxTemporalLayer left at its default of -1, meaning
// unlimited); MaxTemporalLayer exists for parity with the wire format
// and is exercised directly by tests.
type VP8 struct {
	maxTemporalLayer int32
	syncPending      bool
}

// NewVP8 returns a VP8 context with no temporal-layer ceiling.
func NewVP8() *VP8 {
	return &VP8{maxTemporalLayer: -1}
}

// SetMaxTemporalLayer bounds which temporal layers Encode keeps. A
// negative value means unlimited.
func (v *VP8) SetMaxTemporalLayer(layer int32) {
	v.maxTemporalLayer = layer
}

func (v *VP8) SyncRequired() {
	v.syncPending = true
}

// Encode inspects the VP8 payload descriptor's temporal layer index
// (TID, when present) and drops the packet if it exceeds
// maxTemporalLayer. The descriptor bytes themselves are never
// rewritten by a simple consumer (there is only one output stream, so
// no picture-id renumbering is needed).
func (v *VP8) Encode(payload []byte) Result {
	v.syncPending = false

	if v.maxTemporalLayer < 0 {
		return Kept
	}

	tid, ok := vp8TemporalLayer(payload)
	if !ok {
		return Kept
	}
	if int32(tid) > v.maxTemporalLayer {
		return Drop
	}
	return Kept
}

func (v *VP8) Restore(_ []byte) {}

// SyncPending reports whether SyncRequired was called since the last
// Encode; exposed for tests asserting the reset actually happens.
func (v *VP8) SyncPending() bool {
	return v.syncPending
}

// vp8TemporalLayer extracts the TID field from a VP8 payload
// descriptor, if the extended descriptor and T bit are present.
func vp8TemporalLayer(payload []byte) (tid uint8, ok bool) {
	if len(payload) < 1 {
		return 0, false
	}

	b0 := payload[0]
	if b0&0x80 == 0 { // no extended control bits => no TID
		return 0, false
	}
	if len(payload) < 2 {
		return 0, false
	}

	offset := 2
	x := payload[1]
	if x&0x80 != 0 { // I: picture ID present
		if len(payload) <= offset {
			return 0, false
		}
		if payload[offset]&0x80 != 0 {
			offset += 2
		} else {
			offset++
		}
	}
	if x&0x40 != 0 { // L: TL0PICIDX present
		offset++
	}
	if x&0x20 == 0 { // T not present: no TID
		return 0, false
	}
	if len(payload) <= offset {
		return 0, false
	}

	return payload[offset] >> 6, true
}
