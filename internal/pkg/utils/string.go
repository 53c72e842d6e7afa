package utils

import (
	"unicode/utf8"

	"github.com/bytedance/gopkg/lang/fastrand"
)

// RandDigits returns n pseudo-random decimal digits.
func RandDigits(n int) string {
	if n <= 0 {
		return ""
	}

	b := make([]byte, n)
	for i := range b {
		b[i] = byte('0' + fastrand.Uint32n(10))
	}
	return string(b)
}

// Head returns at most n runes of s, without an ellipsis.
func Head(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Truncate shortens content to maxLen runes and marks the cut with "...".
func Truncate(content string, maxLen int) string {
	if utf8.RuneCountInString(content) <= maxLen {
		return content
	}
	return Head(content, maxLen) + "..."
}

func Truncate80(content string) string {
	return Truncate(content, 80)
}
