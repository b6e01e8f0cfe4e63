// Package segment computes how many carrier transmission units an SMS body
// occupies. The result drives the character counter shown while composing and
// matches the way the gateway's modem splits long messages.
package segment

import (
	"unicode/utf16"
)

// Encoding labels reported by Count.
const (
	EncodingCompact  = "GSM-7"
	EncodingExtended = "Unicode"
)

// Per-segment capacities, in UTF-16 code units.
const (
	CompactSingle  = 160
	CompactMulti   = 153
	ExtendedSingle = 70
	ExtendedMulti  = 67
)

// Result describes the segmentation of one message body.
type Result struct {
	Chars    int    // Length in UTF-16 code units.
	Segments int    // Number of SMS segments (0 for empty text).
	Encoding string // EncodingCompact or EncodingExtended.
}

// Count returns the character count, segment count and encoding label for
// text. Any rune above 127 switches the whole message to the extended
// encoding.
func Count(text string) Result {
	chars := 0
	extended := false

	for _, r := range text {
		if r > 127 {
			extended = true
		}
		n := utf16.RuneLen(r)
		if n < 1 {
			// Invalid runes are carried as U+FFFD, one unit.
			n = 1
		}
		chars += n
	}

	single, multi, label := CompactSingle, CompactMulti, EncodingCompact
	if extended {
		single, multi, label = ExtendedSingle, ExtendedMulti, EncodingExtended
	}

	segments := 0
	switch {
	case chars == 0:
	case chars <= single:
		segments = 1
	default:
		segments = (chars + multi - 1) / multi
	}

	return Result{Chars: chars, Segments: segments, Encoding: label}
}

// Remaining returns how many more code units fit before the message grows
// by another segment.
func (r Result) Remaining() int {
	switch {
	case r.Segments == 0:
		if r.Encoding == EncodingExtended {
			return ExtendedSingle
		}
		return CompactSingle
	case r.Segments == 1:
		if r.Encoding == EncodingExtended {
			return ExtendedSingle - r.Chars
		}
		return CompactSingle - r.Chars
	}

	multi := CompactMulti
	if r.Encoding == EncodingExtended {
		multi = ExtendedMulti
	}

	return r.Segments*multi - r.Chars
}
