// Package htmlutils provides HTML cleanup helpers for scraped fragments.
//
// The extraction strategies recover post text from raw page markup and
// feed item bodies, so the text arrives with leftover tags and entities.
// This package reduces such fragments to plain text.
package htmlutils

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagRegex     = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// StripTags removes all HTML tags, replacing each with a space so that
// adjacent text nodes do not run together.
func StripTags(text string) string {
	return tagRegex.ReplaceAllString(text, " ")
}

// DecodeEntities decodes named and numeric HTML entities.
func DecodeEntities(text string) string {
	return html.UnescapeString(text)
}

// Flatten reduces an HTML fragment to plain text: tags stripped, entities
// decoded, whitespace runs collapsed to single spaces, ends trimmed.
func Flatten(fragment string) string {
	text := StripTags(fragment)
	text = DecodeEntities(text)
	text = whitespaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
