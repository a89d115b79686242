package common

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9а-яА-ЯёЁ _.\-]+`)
)

// NormText collapses all whitespace runs to single spaces and trims the result
func NormText(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// CleanField normalizes a scraped field: brackets removed, typographic and
// double quotes folded to apostrophes, whitespace collapsed.
func CleanField(s string) string {
	if s == "" {
		return ""
	}
	r := strings.NewReplacer(
		"[", "",
		"]", "",
		"“", "'",
		"”", "'",
		`"`, "'",
	)
	return NormText(r.Replace(s))
}

// SafeFilename strips characters unsafe for filenames and bounds the length
func SafeFilename(s string, maxLen int) string {
	s = strings.TrimSpace(safeFilenameRe.ReplaceAllString(s, ""))
	s = whitespaceRe.ReplaceAllString(s, "_")
	if runes := []rune(s); maxLen > 0 && len(runes) > maxLen {
		s = string(runes[:maxLen])
	}
	if s == "" {
		return "file"
	}
	return s
}

// Truncate bounds a message to at most max bytes without splitting a
// UTF-8 rune, used before persisting task errors
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
