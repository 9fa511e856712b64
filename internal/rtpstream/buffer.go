package rtpstream

import (
	"time"

	"github.com/pion/rtp"
)

// retainHorizon bounds how long a buffered packet stays eligible for
// retransmission, independent of capacity pressure.
const retainHorizon = time.Second

type bufferedPacket struct {
	seq     uint16
	valid   bool
	arrived time.Time
	pkt     rtp.Packet
}

// retransmitBuffer is a fixed-capacity ring indexed by seq modulo
// capacity, mirroring the bounded deque the contract calls for
// (capacity 1500 when NACK is enabled, 0 otherwise). Eviction is
// implicit: a later packet with the same slot silently overwrites
// whatever was there, and lookups additionally reject anything older
// than retainHorizon.
type retransmitBuffer struct {
	entries []bufferedPacket
}

func newRetransmitBuffer(capacity int) *retransmitBuffer {
	if capacity <= 0 {
		return &retransmitBuffer{}
	}
	return &retransmitBuffer{entries: make([]bufferedPacket, capacity)}
}

func (b *retransmitBuffer) enabled() bool {
	return len(b.entries) > 0
}

func (b *retransmitBuffer) store(pkt *rtp.Packet, arrived time.Time) {
	if !b.enabled() {
		return
	}
	slot := &b.entries[int(pkt.SequenceNumber)%len(b.entries)]
	slot.seq = pkt.SequenceNumber
	slot.valid = true
	slot.arrived = arrived
	slot.pkt = *pkt
	slot.pkt.Payload = append([]byte(nil), pkt.Payload...)
}

// lookup returns the stored packet for seq, if it is still present and
// within the retention horizon as of now.
func (b *retransmitBuffer) lookup(seq uint16, now time.Time) (*rtp.Packet, bool) {
	if !b.enabled() {
		return nil, false
	}
	slot := &b.entries[int(seq)%len(b.entries)]
	if !slot.valid || slot.seq != seq {
		return nil, false
	}
	if now.Sub(slot.arrived) > retainHorizon {
		return nil, false
	}
	return &slot.pkt, true
}
