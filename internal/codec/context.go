// Package codec implements the per-codec payload rewrite capability
// (EncodingContext in spec.md §4.3), grounded on the teacher's
// codecmunger package but trimmed to the single Kept/Drop decision a
// simple (non-simulcast) consumer needs.
package codec

import "strings"

// Result is the outcome of Encode: whether the packet should still be
// forwarded.
type Result int

const (
	// Kept means the packet should be forwarded, possibly with its
	// payload rewritten in place.
	Kept Result = iota
	// Drop means the payload belongs to a layer this consumer does
	// not forward; the caller must not forward the packet.
	Drop
)

// Context is a polymorphic, codec-specific rewrite capability selected
// by mime type. A simple consumer that forwards every layer of its
// codec never needs one; Null satisfies the interface for those.
type Context interface {
	// SyncRequired resets any codec-internal rewrite state so the next
	// Encode call treats its packet as a fresh start.
	SyncRequired()

	// Encode may rewrite payload in place and reports whether the
	// packet should still be forwarded.
	Encode(payload []byte) Result

	// Restore undoes Encode so the caller can reuse the buffer for
	// other consumers of the same producer stream.
	Restore(payload []byte)
}

// ForMimeType returns the Context appropriate for a codec, or nil when
// the codec exposes no per-layer structure a simple consumer needs to
// track (e.g. Opus and other audio codecs).
func ForMimeType(mimeType string) Context {
	switch strings.ToLower(mimeType) {
	case "video/vp8":
		return NewVP8()
	default:
		return nil
	}
}
