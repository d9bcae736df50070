package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTeamNameLen caps a team name in runes when sanitizing.
const MaxTeamNameLen = 100

var (
	controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
)

// NormalizeTeamName turns element text into display text: whitespace runs
// collapse to one space and the ends are trimmed. Nothing else changes.
func NormalizeTeamName(name string) string {
	return strings.TrimSpace(spaceRuns.ReplaceAllString(name, " "))
}

// SanitizeTeamName is the stricter cleanup enabled by extract.sanitize_names:
// on top of NormalizeTeamName it drops control characters and caps the
// result at MaxTeamNameLen runes. An empty result means the text is not a
// team name.
func SanitizeTeamName(name string) string {
	// Normalize first so tabs and newlines become spaces instead of vanishing.
	sanitized := controlChars.ReplaceAllString(NormalizeTeamName(name), "")
	sanitized = NormalizeTeamName(sanitized)

	if utf8.RuneCountInString(sanitized) > MaxTeamNameLen {
		sanitized = strings.TrimSpace(string([]rune(sanitized)[:MaxTeamNameLen]))
	}
	return sanitized
}
