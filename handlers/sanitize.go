package handlers

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxNameRunes   = 32
	maxAvatarRunes = 256
)

// Names and avatars are shown verbatim to every room member, so no markup
// survives.
var textPolicy = bluemonday.StrictPolicy()

func sanitizeText(s string, limit int) string {
	clean, stable := s, false
	// Repeat until decoding no longer uncovers markup.
	for i := 0; i < 4 && !stable; i++ {
		next := html.UnescapeString(textPolicy.Sanitize(html.UnescapeString(clean)))
		stable = next == clean
		clean = next
	}
	if !stable {
		return ""
	}
	clean = strings.TrimSpace(clean)
	if utf8.RuneCountInString(clean) > limit {
		clean = string([]rune(clean)[:limit])
	}
	return strings.TrimSpace(clean)
}

// SanitizeName returns the display name to use, or "" when nothing printable
// is left.
func SanitizeName(name string) string {
	return sanitizeText(name, maxNameRunes)
}

func SanitizeAvatar(avatar string) string {
	return sanitizeText(avatar, maxAvatarRunes)
}
