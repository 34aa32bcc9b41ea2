package util

import (
	"strings"
	"unicode"
)

// CleanLine strips control and invisible characters, including line breaks,
// trims surrounding space, and truncates to maxRunes. maxRunes <= 0 keeps the
// full length.
func CleanLine(value string, maxRunes int) string {
	return clean(value, maxRunes, false)
}

// CleanText is CleanLine for multi-line input: newlines and tabs survive.
func CleanText(value string, maxRunes int) string {
	return clean(value, maxRunes, true)
}

func clean(value string, maxRunes int, multiline bool) string {
	builder := strings.Builder{}
	builder.Grow(len(value))

	for _, char := range value {
		if multiline && (char == '\n' || char == '\t') {
			builder.WriteRune(char)
			continue
		}
		if char == '\r' && multiline {
			continue
		}
		if unicode.IsControl(char) || isInvisibleUnicode(char) {
			continue
		}
		builder.WriteRune(char)
	}

	cleaned := strings.TrimSpace(builder.String())
	if maxRunes <= 0 {
		return cleaned
	}

	// Truncate by runes so multi-byte characters are never split.
	runes := []rune(cleaned)
	if len(runes) > maxRunes {
		cleaned = strings.TrimSpace(string(runes[:maxRunes]))
	}
	return cleaned
}

// isInvisibleUnicode reports zero-width and other format characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // zero-width space
		'\u200C', // zero-width non-joiner
		'\u200D', // zero-width joiner
		'\u2060', // word joiner
		'\uFEFF', // BOM
		'\uFFF9', '\uFFFA', '\uFFFB':
		return true
	}

	return unicode.Is(unicode.Cf, r)
}
