// Package rtprewrite implements the per-Consumer sequence-number and
// timestamp rewriters that keep a forwarded RTP stream monotone across
// resyncs, pauses, and dropped packets.
//
// Both managers follow the same base_input/base_output/dropped_count
// contract: Sync seeds a new baseline, Input maps an incoming value to
// its rewritten output, and Drop records a value that will never reach
// Input so later outputs still account for the hole.
package rtprewrite

// SeqManager rewrites 16-bit RTP sequence numbers so they stay
// strictly monotone (mod 2^16) across sync points and drops.
type SeqManager struct {
	baseInput    uint16
	baseOutput   uint16
	droppedCount uint16
	lastEmitted  uint16
	synced       bool
}

// NewSeqManager returns a SeqManager seeded with a random starting
// output sequence number, matching the convention of starting an RTP
// stream at an unpredictable sequence number (RFC 3550 §5.1).
func NewSeqManager() *SeqManager {
	return &SeqManager{
		lastEmitted: uint16(randomUint32()),
	}
}

// Sync seeds a new baseline: the next Input maps to lastEmitted+1.
func (s *SeqManager) Sync(inputSeq uint16) {
	s.baseInput = inputSeq
	s.baseOutput = s.lastEmitted + 1
	s.droppedCount = 0
	s.synced = true
}

// Drop records that inputSeq will never be forwarded, so the next
// Input compensates the output numbering for the hole.
func (s *SeqManager) Drop(uint16) {
	s.droppedCount++
}

// Input maps an incoming sequence number to its rewritten output,
// using 16-bit wrap-aware arithmetic throughout.
func (s *SeqManager) Input(inputSeq uint16) uint16 {
	delta := int16(inputSeq - s.baseInput)
	out := s.baseOutput + uint16(delta) - s.droppedCount
	if seqGT(out, s.lastEmitted) {
		s.lastEmitted = out
	}
	return out
}

// LastEmitted returns the highest output sequence number produced so
// far (wrap-aware).
func (s *SeqManager) LastEmitted() uint16 {
	return s.lastEmitted
}

// Synced reports whether Sync has been called at least once.
func (s *SeqManager) Synced() bool {
	return s.synced
}

// seqGT reports whether a is strictly after b in 16-bit wrap-aware
// sequence order (RFC 1982 serial number arithmetic).
func seqGT(a, b uint16) bool {
	return int16(a-b) > 0
}
