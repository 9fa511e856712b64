package rtprewrite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimestampManagerContiguous(t *testing.T) {
	ts := NewTimestampManager()
	ts.Sync(48000)

	base := ts.Input(48000)
	require.Equal(t, base+960, ts.Input(48960))
	require.Equal(t, base+1920, ts.Input(49920))
}

func TestTimestampManagerPauseOffset(t *testing.T) {
	// S3: after a 2s pause at 90kHz clock rate, the first ts emitted
	// after resync should be lastEmitted + 180000, not derived from
	// the raw input timestamp gap.
	const clockRate = 90000

	ts := NewTimestampManager()
	ts.Sync(0)
	var lastOut uint32
	for i := uint32(0); i < 5; i++ {
		lastOut = ts.Input(i * clockRate)
	}

	// pause for 2000ms wall-clock, then resync on a much larger input ts
	ts.Sync(9000000)
	diffMs := uint32(2000)
	diffTs := diffMs * clockRate / 1000
	ts.Offset(diffTs)

	out := ts.Input(9000000)
	require.InDelta(t, int64(lastOut)+int64(diffTs), int64(out), 1)

	next := ts.Input(9090000)
	require.Equal(t, out+90000, next)
}

func TestTimestampManagerDrop(t *testing.T) {
	ts := NewTimestampManager()
	ts.Sync(1000)
	base := ts.Input(1000)
	ts.Drop(2000)
	// one recorded drop shifts later outputs back by one, as in SeqManager
	require.Equal(t, base+2000-1, ts.Input(3000))
}
