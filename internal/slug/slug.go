// Package slug validates and derives the short identifiers used for participants.
package slug

import (
	"regexp"
	"strings"
)

// Pattern is the accepted slug shape.
const Pattern = `^[a-z0-9_]{2,40}$`

var reSlug = regexp.MustCompile(Pattern)

// IsSlug reports whether s matches Pattern.
func IsSlug(s string) bool {
	return reSlug.MatchString(s)
}

// Slugify lowercases s, maps runs of other characters to a single '_',
// trims underscores at both ends and caps the result at 40 runes.
func Slugify(s string) string {
	out := make([]rune, 0, len(s))
	prevUnderscore := false
	for _, r := range strings.ToLower(s) {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		switch {
		case ok:
			out = append(out, r)
			prevUnderscore = false
		case !prevUnderscore:
			out = append(out, '_')
			prevUnderscore = true
		}
		if len(out) >= 40 {
			break
		}
	}
	return strings.Trim(string(out), "_")
}

// FromName derives a participant id from a display name, falling back to
// def when the name yields nothing usable.
func FromName(name, def string) string {
	if s := Slugify(name); IsSlug(s) {
		return s
	}
	return def
}
