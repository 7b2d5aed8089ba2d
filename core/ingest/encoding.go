package ingest

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// maxReplacementRatio is the share of U+FFFD runes above which an EUC-KR decoding is rejected.
const maxReplacementRatio = 0.01

// DecodeText decodes a text file of unknown encoding: strict UTF-8, then EUC-KR (CP949), then Latin-1.
// It never fails.
func DecodeText(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	b = bytes.TrimPrefix(b, utf8BOM)
	if utf8.Valid(b) {
		return string(b)
	}

	if decoded, err := korean.EUCKR.NewDecoder().Bytes(b); err == nil && !tooManyReplacements(decoded) {
		return string(decoded)
	}

	// every byte is a valid Latin-1 code point
	decoded, _ := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(decoded)
}

func tooManyReplacements(b []byte) bool {
	var total, bad int
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		total++
		if r == utf8.RuneError {
			bad++
		}
	}
	return total == 0 || float64(bad)/float64(total) > maxReplacementRatio
}
