package fat

import (
	"unicode/utf16"
	"unicode/utf8"
)

// utf16ToString and stringToUTF16 convert between the UTF-16 code units
// stored in LFN slots and UTF-8 display names. No third-party library in
// the corpus offers UTF-16 transcoding; this rides the standard library's
// unicode/utf16 and unicode/utf8 packages, which is what the decision
// comes down to for a pure codepoint transform with no I/O or protocol
// framing around it.
func utf16ToString(units []uint16) string {
	runes := utf16.Decode(units)
	return string(runes)
}

func stringToUTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func validUTF8Name(s string) bool {
	return utf8.ValidString(s) && len(s) > 0
}
