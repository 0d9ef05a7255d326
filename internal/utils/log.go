package utils

import "strings"

// Truncate cuts s to at most limit runes without any suffix.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// TruncateForLog trims s and bounds it to limit runes, marking a cut with "...".
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	cut := Truncate(s, limit)
	if cut == s || limit <= 0 {
		return cut
	}
	return cut + "..."
}
