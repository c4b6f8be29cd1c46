package domain

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxDisplayNameLen bounds display names and room titles, in runes.
const MaxDisplayNameLen = 32

var roomNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidRoomName reports whether name can be used as a room key.
func ValidRoomName(name string) bool {
	return roomNamePattern.MatchString(name)
}

// NormalizeDisplayName trims and collapses runs of whitespace.
func NormalizeDisplayName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

const allowedPunct = " _.-/()[]!?"

func allowedTitleRune(r rune) bool {
	switch {
	case r < utf8.RuneSelf:
		return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') ||
			strings.ContainsRune(allowedPunct, r)
	default:
		return unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han)
	}
}

// IsValidDisplayName applies the allowlist used for room titles: Japanese
// scripts, ASCII letters and digits, space and a few punctuation marks,
// 1 to 32 runes after normalization.
func IsValidDisplayName(s string) bool {
	n := NormalizeDisplayName(s)
	count := utf8.RuneCountInString(n)
	if count < 1 || count > MaxDisplayNameLen {
		return false
	}
	for _, r := range n {
		if !allowedTitleRune(r) {
			return false
		}
	}
	return true
}

// SanitizeInlineText strips control characters and characters commonly
// used for markup injection, normalizes whitespace and truncates to maxLen
// runes. It is applied to free-form presence names.
func SanitizeInlineText(s string, maxLen int) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) || strings.ContainsRune("<>\"'`", r) {
			return -1
		}
		return r
	}, s)
	s = NormalizeDisplayName(s)
	if utf8.RuneCountInString(s) > maxLen {
		s = strings.TrimSpace(string([]rune(s)[:maxLen]))
	}
	return s
}
