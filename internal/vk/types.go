// Package vk defines the wall post domain model and the deterministic
// text transformations applied to scraped posts before import.
//
// Posts come from four different extraction paths with very different
// fidelity (typed API JSON down to regex-recovered HTML fragments), so the
// model keeps only the fields every path can produce: a native post ID, a
// unix timestamp, raw text, and an optional attachment list.
package vk

// Post is a single wall post as recovered by an extraction strategy.
// It is ephemeral: the ingestion pipeline turns it into a news record and
// never looks at it again.
type Post struct {
	// ID is the platform's native post identifier, used as the
	// deduplication key. Fallback strategies that cannot recover a real
	// ID synthesize one; synthetic IDs are not stable across runs.
	ID int64 `json:"id"`

	// Date is the publication time in unix seconds. Strategies that
	// cannot recover it synthesize a decreasing timestamp so relative
	// ordering survives.
	Date int64 `json:"date"`

	// Text is the raw post body. May contain [target|label] mention
	// tokens, bare URLs, or HTML leftovers depending on the strategy.
	Text string `json:"text"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a typed media reference on a post.
type Attachment struct {
	Type  string `json:"type"`
	Photo *Photo `json:"photo,omitempty"`
}

// Photo holds the resolution variants of a photo attachment.
type Photo struct {
	Sizes []PhotoSize `json:"sizes"`
}

// PhotoSize is one resolution variant. Width and height are optional;
// when absent the single-letter size code is the only hint.
type PhotoSize struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}
