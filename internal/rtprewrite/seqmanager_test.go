package rtprewrite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeqManagerContiguous(t *testing.T) {
	s := NewSeqManager()
	s.Sync(1000)

	base := s.Input(1000)
	require.Equal(t, base, s.LastEmitted())
	require.Equal(t, base+1, s.Input(1001))
	require.Equal(t, base+2, s.Input(1002))
}

func TestSeqManagerDropDensity(t *testing.T) {
	// after N forwards interleaved with D drops, the highest emitted
	// output seq equals base_output + N - 1 with no visible gaps.
	s := NewSeqManager()
	s.Sync(0)
	baseOutput := s.Input(0)

	forwarded := 0
	seq := uint16(0)
	for i := 0; i < 20; i++ {
		seq++
		if i%3 == 1 {
			s.Drop(seq)
			continue
		}
		out := s.Input(seq)
		forwarded++
		require.Equal(t, baseOutput+uint16(forwarded), out)
	}
	require.Equal(t, baseOutput+uint16(forwarded), s.LastEmitted())
}

func TestSeqManagerResyncRestartsBaseline(t *testing.T) {
	s := NewSeqManager()
	s.Sync(5000)
	last := s.Input(5000)

	// producer stream replaced: input numbering restarts from a wildly
	// different value, but output must continue right after `last`.
	s.Sync(10)
	require.Equal(t, last+1, s.Input(10))
	require.Equal(t, last+2, s.Input(11))
}

func TestSeqManagerWrapAround(t *testing.T) {
	s := NewSeqManager()
	s.Sync(65534)
	first := s.Input(65534)
	require.Equal(t, first+1, s.Input(65535))
	require.Equal(t, first+2, s.Input(0))
	require.Equal(t, first+3, s.Input(1))
}
