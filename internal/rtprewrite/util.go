package rtprewrite

import "math/rand"

func randomUint32() uint32 {
	return rand.Uint32() //nolint:gosec // not security sensitive
}
