package at

import "encoding/hex"

const upperHex = "0123456789ABCDEF"

// EncodeHex writes the uppercase hex representation of src into dst and
// returns the number of characters written, always 2*len(src).
func EncodeHex(dst, src []byte) (int, error) {
	if len(dst) < 2*len(src) {
		return 0, ErrBufferTooSmall
	}
	for i, b := range src {
		dst[2*i] = upperHex[b>>4]
		dst[2*i+1] = upperHex[b&0x0f]
	}
	return 2 * len(src), nil
}

// DecodeHex decodes hex text from src into dst, stopping once dst is full or
// src is exhausted, and returns the number of bytes written.
//
// The whole of src is validated before anything is written: an odd length or
// a non-hex character fails with ErrMalformedHex and leaves dst untouched.
func DecodeHex(dst, src []byte) (int, error) {
	if len(src)%2 != 0 {
		return 0, ErrMalformedHex
	}
	for _, c := range src {
		if !isHexChar(c) {
			return 0, ErrMalformedHex
		}
	}
	n := min(len(src)/2, len(dst))
	return hex.Decode(dst[:n], src[:2*n])
}

func isHexChar(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case 'A' <= c && c <= 'F':
		return true
	case 'a' <= c && c <= 'f':
		return true
	}
	return false
}
