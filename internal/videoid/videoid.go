// Package videoid extracts canonical 11-character video identifiers from
// free-form input such as full YouTube URLs, short links or bare IDs.
package videoid

import (
	"regexp"
)

// canonical is the literal shape of a video ID: exactly 11 characters from
// the base64url alphabet.
var canonical = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// urlPatterns are tried in priority order; the first capturing match wins.
var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:v=)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:embed/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/live/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:live/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/watch\?.*v=)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/.*[?&]v=)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/.*/live/)([a-zA-Z0-9_-]{11})`),
}

// anyToken matches any 11-character candidate anywhere in the input.
var anyToken = regexp.MustCompile(`([a-zA-Z0-9_-]{11})`)

// Extract derives a video ID from a URL or raw ID. It never fails: when no
// candidate is found the input is returned unchanged, so callers must check
// the result with IsValid before trusting it.
func Extract(input string) string {
	if canonical.MatchString(input) {
		return input
	}

	for _, pattern := range urlPatterns {
		if match := pattern.FindStringSubmatch(input); match != nil {
			return match[1]
		}
	}

	if match := anyToken.FindStringSubmatch(input); match != nil {
		return match[1]
	}

	return input
}

// IsValid reports whether s has the canonical video ID shape
func IsValid(s string) bool {
	return canonical.MatchString(s)
}
