package parser

import "unicode/utf8"

// Repair fixes the mojibake found in Facebook export text.
//
// The export writes UTF-8 text escaped one byte at a time as Latin-1
// codepoints, e.g. the Polish character ł (U+0142, UTF-8 bytes C5 82)
// arrives as "Å". If every character fits in a single byte,
// reinterpret the codepoints as raw bytes and try to decode them as
// UTF-8. Correct text either fails that decode or round-trips
// unchanged, so Repair is idempotent.
func Repair(s string) string {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return s
		}
		buf = append(buf, byte(r))
	}
	if !utf8.Valid(buf) {
		return s
	}
	fixed := string(buf)
	if fixed == s {
		return s
	}
	return fixed
}
