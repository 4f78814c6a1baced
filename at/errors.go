package at

import "errors"

var (
	// ErrBufferTooSmall is returned by EncodeHex when the destination cannot
	// hold two characters per source byte. Nothing is written.
	ErrBufferTooSmall = errors.New("hex buffer too small")

	// ErrMalformedHex is returned by DecodeHex when the input has an odd
	// length or contains a character outside [0-9A-Fa-f]. Nothing is written.
	ErrMalformedHex = errors.New("malformed hex text")

	// ErrUnexpectedLine marks a line that matched neither OK, ERROR nor the
	// expected prefix of the current wait. It is logged, never returned by
	// the driver's public operations.
	ErrUnexpectedLine = errors.New("unexpected line from modem")
)
