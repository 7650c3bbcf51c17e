package pipeline

import (
	"strings"
	"unicode"
)

// maxTags bounds how many generated tags are appended to a caption.
const maxTags = 5

// SanitizeTags coerces raw generated text into tag-safe tokens. The
// generator's output is opaque and occasionally noisy: tokens are stripped
// of punctuation, reduced to word characters, lower-cased, and prefixed.
// Returns "" when nothing usable remains.
func SanitizeTags(raw string) string {
	var tags []string
	seen := make(map[string]struct{})

	for _, token := range strings.Fields(raw) {
		tag := tagSafe(token)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, "#"+tag)
		if len(tags) == maxTags {
			break
		}
	}

	return strings.Join(tags, " ")
}

// tagSafe reduces one token to [a-z0-9_] characters.
func tagSafe(token string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(token) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		}
	}

	tag := b.String()
	// A bare number or underscore run is noise, not a tag.
	if strings.Trim(tag, "0123456789_") == "" {
		return ""
	}
	return tag
}
