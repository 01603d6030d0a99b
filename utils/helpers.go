package utils

import (
	"net/url"
	"regexp"
	"strings"
)

// slugRegex matches any character that is NOT a letter, a number, or a hyphen.
var slugRegex = regexp.MustCompile(`[^\p{L}\p{N}-]+`)

// CreateSlug generates a file-name friendly slug from a title.
func CreateSlug(title string) string {
	// 1. Replace spaces and path separators with hyphens
	slug := strings.NewReplacer(" ", "-", "/", "-", "_", "-", ".", "-").Replace(strings.TrimSpace(title))

	// 2. Remove all invalid characters using the regex
	slug = slugRegex.ReplaceAllString(slug, "")

	// 3. Collapse repeated hyphens left by the replacements
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	return strings.Trim(strings.ToLower(slug), "-")
}

// PageSlug names the output files of a page: its configured name if any, otherwise the last
// path segment of its URL.
func PageSlug(name, pageURL string) string {
	if slug := CreateSlug(name); slug != "" {
		return slug
	}
	if u, err := url.Parse(pageURL); err == nil {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if slug := CreateSlug(segments[len(segments)-1]); slug != "" {
			return slug
		}
		if slug := CreateSlug(u.Host); slug != "" {
			return slug
		}
	}
	return "page"
}
