// Package naming builds safe output file names.
package naming

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	// MaxLen bounds a sanitized name, counted in runes.
	MaxLen = 80

	// Fallback is used when nothing survives sanitization.
	Fallback = "untitled"

	// Extension of rendered documents.
	Extension = ".md"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// Sanitize turns arbitrary text into a file name component: reserved
// characters and control characters become underscores, whitespace runs become
// a single underscore, underscores are collapsed and trimmed.
func Sanitize(value string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return '_'
		}
		return r
	}, value)
	safe = whitespaceRun.ReplaceAllString(safe, "_")
	safe = underscoreRun.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_ ")

	if safe == "" {
		return Fallback
	}
	if runes := []rune(safe); len(runes) > MaxLen {
		safe = strings.TrimRight(string(runes[:MaxLen]), "_")
		if safe == "" {
			return Fallback
		}
	}
	return safe
}

// DocumentName returns "{index:03d}_{day}_{subject}.md".
func DocumentName(index int, day, subject string) string {
	return fmt.Sprintf("%03d_%s_%s%s", index, day, Sanitize(subject), Extension)
}
