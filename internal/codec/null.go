package codec

// Null is the Context for codecs with no per-layer structure (Opus and
// most audio codecs): every packet is kept unmodified.
type Null struct{}

// NewNull returns a Context that never drops or rewrites a payload.
func NewNull() *Null {
	return &Null{}
}

func (n *Null) SyncRequired() {}

func (n *Null) Encode(_ []byte) Result {
	return Kept
}

func (n *Null) Restore(_ []byte) {}
