package telegram

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// splitMessage cuts text into chunks of at most limit runes, preferring
// paragraph breaks, then line breaks, then spaces.
func splitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for text != "" {
		if utf8.RuneCountInString(text) <= limit {
			chunks = append(chunks, text)
			break
		}
		head := runePrefix(text, limit)
		cut := lastBreak(head)
		if cut <= 0 {
			cut = len(head)
		}
		if chunk := strings.TrimSpace(text[:cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[cut:])
	}
	return chunks
}

func lastBreak(s string) int {
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(s, sep); i > 0 {
			return i
		}
	}
	return -1
}

// runePrefix returns the first n runes of s.
func runePrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func utf16Units(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func utf16String(u []uint16) string {
	return string(utf16.Decode(u))
}
