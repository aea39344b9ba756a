// Package fingerprint derives stable routing identifiers from strings.
//
// The scheme is the classic 31-multiplier rolling hash over UTF-16 code units,
// truncated to a signed 32-bit integer and rendered in base 16. It is fast and
// deterministic but collides easily; it must never be used as a secret.
package fingerprint

import (
	"strconv"
	"unicode/utf16"
)

// Of returns the fingerprint of s. Of("") is "0".
func Of(s string) string {
	return strconv.FormatInt(int64(Sum32(s)), 16)
}

// Sum32 returns the raw signed 32-bit hash of s
func Sum32(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		// int32 arithmetic wraps on overflow
		h = (h << 5) - h + int32(c)
	}
	return h
}
