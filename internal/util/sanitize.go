package util

import (
	"strings"
	"unicode"
)

// SanitizeMessage strips control characters and truncates s to max runes so
// upstream error text can be handed to clients.
func SanitizeMessage(s string, max int) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, strings.TrimSpace(s))

	runes := []rune(s)
	if max > 0 && len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}

// ShortToken returns a loggable prefix of a bearer credential digest.
func ShortToken(digest string) string {
	if len(digest) <= 8 {
		return digest
	}
	return digest[:8]
}
