package utils

import (
	"regexp"
	"strings"
)

// spaceRegex matches any run of whitespace, including non-breaking spaces left by the page markup.
var spaceRegex = regexp.MustCompile(`[\s\x{00a0}]+`)

// CleanText collapses whitespace runs into single spaces and trims the result.
// Review widgets indent their markup heavily, so raw text nodes are full of newlines and tabs.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}
