package consumer

import "errors"

var (
	// ErrInvalidEncodingCount is returned by New when the caller supplies
	// anything other than exactly one consumable encoding.
	ErrInvalidEncodingCount = errors.New("consumer: exactly one consumable encoding is required")
	// ErrNoCodecForEncoding is returned by New when the codec descriptor
	// has no mime type.
	ErrNoCodecForEncoding = errors.New("consumer: no codec descriptor for encoding")
)
