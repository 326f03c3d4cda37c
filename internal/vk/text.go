package vk

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	titleMaxRunes = 100
	slugMaxRunes  = 50

	// DefaultExcerptLen is the excerpt cutoff used when no explicit
	// length is configured.
	DefaultExcerptLen = 200
)

var (
	mentionRe    = regexp.MustCompile(`\[([^\]]+)\|([^\]]+)\]`)
	bareURLRe    = regexp.MustCompile(`https?://\S+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	slugStripRe  = regexp.MustCompile(`[^a-zа-я0-9\s-]`)
	hyphenRunRe  = regexp.MustCompile(`-+`)
	trailingWord = regexp.MustCompile(`\s+\S*$`)
)

// CleanText strips platform markup from a raw post body: [target|label]
// mention and link tokens are replaced with their label (applied twice to
// resolve one level of nesting), bare URLs are removed, and whitespace
// runs collapse to single spaces.
func CleanText(raw string) string {
	cleaned := mentionRe.ReplaceAllString(raw, "$2")
	cleaned = mentionRe.ReplaceAllString(cleaned, "$2")
	cleaned = bareURLRe.ReplaceAllString(cleaned, "")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")

	return strings.TrimSpace(cleaned)
}

// Title derives a news title from cleaned text: the first 100 characters
// with internal newlines flattened to spaces.
func Title(cleaned string) string {
	runes := []rune(cleaned)
	if len(runes) > titleMaxRunes {
		runes = runes[:titleMaxRunes]
	}

	title := strings.ReplaceAll(string(runes), "\n", " ")

	return strings.TrimSpace(title)
}

// Slug derives a URL slug from a title: the first 50 characters,
// lowercased, reduced to Latin/Cyrillic letters, digits and hyphens.
// A title that strips down to nothing falls back to "post-<id>" so the
// slug is never empty.
func Slug(title string, postID int64) string {
	runes := []rune(strings.ToLower(title))
	if len(runes) > slugMaxRunes {
		runes = runes[:slugMaxRunes]
	}

	slug := slugStripRe.ReplaceAllString(string(runes), "")
	slug = whitespaceRe.ReplaceAllString(slug, "-")
	slug = hyphenRunRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		return fmt.Sprintf("post-%d", postID)
	}

	return slug
}

// Excerpt truncates cleaned text to at most maxLen characters, trimming
// back to the previous word boundary and appending an ellipsis. Text that
// already fits is returned unchanged.
func Excerpt(cleaned string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultExcerptLen
	}

	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned
	}

	truncated := trailingWord.ReplaceAllString(string(runes[:maxLen]), "")

	return truncated + "..."
}

// PostLink builds the canonical permalink for a wall post. ownerID is the
// negative group owner ID as used by the wall API.
func PostLink(ownerID, postID int64) string {
	groupID := ownerID
	if groupID < 0 {
		groupID = -groupID
	}

	return fmt.Sprintf("https://vk.com/club%d?w=wall%d_%d", groupID, ownerID, postID)
}
