package rtprewrite

// TimestampManager rewrites 32-bit RTP timestamps so they stay
// non-decreasing (mod 2^32) across sync points, drops, and pauses. It
// shares SeqManager's base_input/base_output/dropped_count contract
// and adds Offset, used to fold a pause's real elapsed wall time into
// the timestamp so the receiver doesn't see a frozen-then-instant
// jump in media time.
type TimestampManager struct {
	baseInput    uint32
	baseOutput   uint32
	droppedCount uint32
	lastEmitted  uint32
	synced       bool
}

// NewTimestampManager returns a TimestampManager with a random
// starting output timestamp, matching the convention of an
// unpredictable initial RTP timestamp (RFC 3550 §5.1).
func NewTimestampManager() *TimestampManager {
	return &TimestampManager{
		lastEmitted: randomUint32(),
	}
}

// Sync seeds a new baseline: the next Input maps to lastEmitted+1.
func (t *TimestampManager) Sync(inputTs uint32) {
	t.baseInput = inputTs
	t.baseOutput = t.lastEmitted + 1
	t.droppedCount = 0
	t.synced = true
}

// Offset adds tsDelta to the output baseline, used right after Sync to
// collapse a pause gap into a clean forward jump instead of resuming
// at the wall-clock-accumulated raw input timestamp.
func (t *TimestampManager) Offset(tsDelta uint32) {
	t.baseOutput += tsDelta
	t.lastEmitted += tsDelta
}

// Drop records that inputTs will never be forwarded, so the next
// Input compensates the output numbering for the hole.
func (t *TimestampManager) Drop(uint32) {
	t.droppedCount++
}

// Input maps an incoming timestamp to its rewritten output, using
// 32-bit wrap-aware arithmetic throughout.
func (t *TimestampManager) Input(inputTs uint32) uint32 {
	delta := int32(inputTs - t.baseInput)
	out := t.baseOutput + uint32(delta) - t.droppedCount
	if tsGE(out, t.lastEmitted) {
		t.lastEmitted = out
	}
	return out
}

// LastEmitted returns the highest output timestamp produced so far
// (wrap-aware).
func (t *TimestampManager) LastEmitted() uint32 {
	return t.lastEmitted
}

// Synced reports whether Sync has been called at least once.
func (t *TimestampManager) Synced() bool {
	return t.synced
}

// tsGE reports whether a is at or after b in 32-bit wrap-aware
// timestamp order.
func tsGE(a, b uint32) bool {
	return int32(a-b) >= 0
}
