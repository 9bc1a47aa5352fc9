package fat

import (
	"fmt"
	"strconv"
	"strings"
)

var shortNameInvalidChars = "\"*+,/:;<=>?[\\]|"

// sanitizeShortNameChar uppercases r and replaces a character the 8.3
// charset disallows with '_', per the conventional FAT short-name
// sanitization rules.
func sanitizeShortNameChar(r rune) byte {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	if r > 0x7f || strings.ContainsRune(shortNameInvalidChars, r) || r == ' ' {
		return '_'
	}
	return byte(r)
}

// canonicalShortName builds the 11-byte 8.3 encoding of a UTF-8 name,
// splitting on the last dot for the extension, truncating to 8+3 chars.
func canonicalShortName(name string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	base := name
	ext := ""
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		base = name[:dot]
		ext = name[dot+1:]
	}
	base = strings.TrimLeft(base, ".")
	for i := 0; i < 8 && i < len(base); i++ {
		out[i] = sanitizeShortNameChar(rune(base[i]))
	}
	for i := 0; i < 3 && i < len(ext); i++ {
		out[8+i] = sanitizeShortNameChar(rune(ext[i]))
	}
	return out
}

// needsLFN reports whether name cannot be represented exactly by its
// canonical short-name encoding (mixed case, too long, disallowed chars,
// multiple dots), in which case an LFN run must accompany the SFN.
func needsLFN(name string) bool {
	if len(name) == 0 || len(name) > 255 {
		return true
	}
	base := name
	ext := ""
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		base = name[:dot]
		ext = name[dot+1:]
	}
	if len(base) > 8 || len(ext) > 3 {
		return true
	}
	if strings.Count(name, ".") > 1 {
		return true
	}
	for _, r := range name {
		if r != sanitizeShortNameCharIdentity(r) {
			return true
		}
	}
	return false
}

func sanitizeShortNameCharIdentity(r rune) rune {
	if r > 0x7f || strings.ContainsRune(shortNameInvalidChars, r) || r == ' ' {
		return 0 // never matches, forcing needsLFN true
	}
	if r >= 'a' && r <= 'z' {
		return 0
	}
	return r
}

// numericTailName produces "NAME~n.EXT" for alias generation, n in [1,9999].
func numericTailName(base, ext string, n int) [11]byte {
	suffix := "~" + strconv.Itoa(n)
	maxBase := 8 - len(suffix)
	if maxBase < 1 {
		maxBase = 1
	}
	truncated := base
	if len(truncated) > maxBase {
		truncated = truncated[:maxBase]
	}
	full := truncated + suffix
	if len(full) > 8 {
		full = full[:8]
	}
	padded := full + "." + ext
	return canonicalShortName(padded)
}

func splitBaseExt(name string) (base, ext string) {
	base = name
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		base, ext = name[:dot], name[dot+1:]
	}
	return
}

func shortNameString(sn [11]byte) string {
	base := strings.TrimRight(string(sn[0:8]), " ")
	ext := strings.TrimRight(string(sn[8:11]), " ")
	if ext == "" {
		return base
	}
	return fmt.Sprintf("%s.%s", base, ext)
}
