package walker

import (
	"bytes"
	"unicode/utf8"
)

// sniffLen is how much of a file we inspect to decide text vs binary.
const sniffLen = 512

// IsText reports whether data looks like UTF-8 text. Detection is by
// content, never by extension, so novel script extensions are not silently
// skipped: a NUL byte or invalid UTF-8 in the leading chunk marks the file
// as binary.
func IsText(data []byte) bool {
	if len(data) == 0 {
		return true
	}

	chunk := data
	if len(chunk) > sniffLen {
		chunk = chunk[:sniffLen]
		// Don't let a rune split at the chunk boundary read as invalid.
		for len(chunk) > 0 && !utf8.RuneStart(chunk[len(chunk)-1]) {
			chunk = chunk[:len(chunk)-1]
		}
		if len(chunk) > 0 {
			if r, _ := utf8.DecodeLastRune(chunk); r == utf8.RuneError {
				chunk = chunk[:len(chunk)-1]
			}
		}
	}

	if bytes.IndexByte(chunk, 0) >= 0 {
		return false
	}
	return utf8.Valid(chunk)
}
