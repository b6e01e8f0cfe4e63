package transport

import (
	"bytes"
	"unicode/utf8"
)

// minHexRun is the shortest bare hex frame treated as a raw UCS-2 payload.
const minHexRun = 4

// IsArtifact reports whether a frame that failed to parse is a known
// transcoding artifact of the device firmware: bytes that are not UTF-8,
// embedded NUL or control bytes, or a bare run of hex digits left over from
// an undecoded UCS-2 payload. Such frames are not shown to the user.
func IsArtifact(raw []byte) bool {
	if !utf8.Valid(raw) {
		return true
	}

	for _, b := range raw {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			return true
		}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) < minHexRun {
		return false
	}
	for _, b := range trimmed {
		if !isHex(b) {
			return false
		}
	}

	return true
}

func isHex(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'f' || b >= 'A' && b <= 'F'
}
