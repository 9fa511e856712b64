package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVP8UnlimitedForwardsEverything(t *testing.T) {
	v := NewVP8()
	// extended descriptor with T bit set, TID=2
	payload := []byte{0x80, 0x20, 0x80}
	require.Equal(t, Kept, v.Encode(payload))
}

func TestVP8DropsAboveMaxTemporalLayer(t *testing.T) {
	v := NewVP8()
	v.SetMaxTemporalLayer(1)

	// TID=0 in top two bits of the TID/K byte
	low := []byte{0x80, 0x20, 0x00}
	require.Equal(t, Kept, v.Encode(low))

	// TID=2
	high := []byte{0x80, 0x20, 0x80}
	require.Equal(t, Drop, v.Encode(high))
}

func TestVP8SyncRequiredResetsOnEncode(t *testing.T) {
	v := NewVP8()
	v.SyncRequired()
	require.True(t, v.SyncPending())
	v.Encode([]byte{0x00})
	require.False(t, v.SyncPending())
}

func TestNullAlwaysKeeps(t *testing.T) {
	n := NewNull()
	n.SyncRequired()
	require.Equal(t, Kept, n.Encode([]byte{1, 2, 3}))
}

func TestForMimeType(t *testing.T) {
	require.IsType(t, &VP8{}, ForMimeType("video/VP8"))
	require.Nil(t, ForMimeType("audio/opus"))
}
