package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/okhotnikov/vk-news-sync/internal/platform/htmlutils"
	"github.com/okhotnikov/vk-news-sync/internal/vk"
)

const (
	// minPageBodyBytes rejects stub responses; a real group page is
	// never this small.
	minPageBodyBytes = 1000

	// maxJSONWalkDepth bounds the embedded-JSON tree walk. Page data is
	// attacker-influenced, so the recursion must not be unbounded.
	maxJSONWalkDepth = 32
)

// embeddedJSONPatterns are the known inline-script variable assignments
// the platform has shipped wall data under. Layout changes break these
// without notice; they are attempted, never relied on.
var embeddedJSONPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)window\._pageData\s*=\s*(\{.+?\});`),
	regexp.MustCompile(`(?s)window\.initData\s*=\s*(\{.+?\});`),
	regexp.MustCompile(`(?s)"wall":\s*(\{[^}]+"items":\[.*?\].*?\})`),
}

var (
	wallPostTextRe = regexp.MustCompile(`(?is)<div[^>]*wall_post_text[^>]*>(.*?)(?:</div>|$)`)
	postIDAttrRe   = regexp.MustCompile(`^(-?\d+)_(\d+)$`)
)

// FullHTMLStrategy is the last resort: it downloads the group page in
// several URL variants and digs posts out of it, preferring embedded
// JSON, then structural block parsing, then a loose index-aligned pairing
// of ID markers with text blocks.
type FullHTMLStrategy struct {
	client  *Client
	groupID int64
	now     func() time.Time
}

// NewFullHTMLStrategy creates the strategy for the given positive group ID.
func NewFullHTMLStrategy(client *Client, groupID int64) *FullHTMLStrategy {
	return &FullHTMLStrategy{client: client, groupID: groupID, now: time.Now}
}

func (s *FullHTMLStrategy) Name() string { return "full-html" }

func (s *FullHTMLStrategy) candidateURLs() []string {
	return []string{
		fmt.Sprintf("https://vk.com/club%d", s.groupID),
		fmt.Sprintf("https://m.vk.com/club%d", s.groupID),
		fmt.Sprintf("https://vk.com/public%d", s.groupID),
		fmt.Sprintf("https://vk.com/wall-%d", s.groupID),
	}
}

// FetchPosts tries each URL variant until one yields posts.
func (s *FullHTMLStrategy) FetchPosts(ctx context.Context, count, offset int) ([]vk.Post, error) {
	var lastErr error = ErrNoPosts

	for _, pageURL := range s.candidateURLs() {
		headers := desktopHeaders()
		if strings.Contains(pageURL, "m.vk.com") {
			headers = mobileHeaders()
		}

		body, err := s.client.Get(ctx, pageURL, headers)
		if err != nil {
			lastErr = err
			continue
		}

		if len(body) < minPageBodyBytes {
			continue
		}

		posts := s.extract(body, count)
		if len(posts) > offset {
			end := offset + count
			if end > len(posts) {
				end = len(posts)
			}

			return posts[offset:end], nil
		}
	}

	return nil, fmt.Errorf("full HTML extraction: %w", lastErr)
}

// extract runs the three nested attempts; first producing any post wins.
func (s *FullHTMLStrategy) extract(body []byte, count int) []vk.Post {
	if posts := s.extractEmbeddedJSON(string(body)); len(posts) > 0 {
		return posts
	}

	if posts := s.extractStructural(body, count); len(posts) > 0 {
		return posts
	}

	return s.extractLoose(string(body), count)
}

// extractEmbeddedJSON looks for known script-variable assignments and
// walks whatever parses as JSON for objects shaped like posts.
func (s *FullHTMLStrategy) extractEmbeddedJSON(html string) []vk.Post {
	for _, pattern := range embeddedJSONPatterns {
		m := pattern.FindStringSubmatch(html)
		if m == nil {
			continue
		}

		var data any
		if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
			continue
		}

		if posts := walkPosts(data, 0); len(posts) > 0 {
			return posts
		}
	}

	return nil
}

// walkPosts recursively collects objects carrying a numeric id and a
// string text, including under items/posts/wall keys. Depth-bounded.
func walkPosts(data any, depth int) []vk.Post {
	if depth > maxJSONWalkDepth {
		return nil
	}

	var posts []vk.Post

	switch v := data.(type) {
	case []any:
		for _, item := range v {
			posts = append(posts, walkPosts(item, depth+1)...)
		}
	case map[string]any:
		if post, ok := postFromObject(v); ok {
			posts = append(posts, post)
		}

		for _, child := range v {
			if _, isObj := child.(map[string]any); isObj {
				posts = append(posts, walkPosts(child, depth+1)...)
			} else if _, isArr := child.([]any); isArr {
				posts = append(posts, walkPosts(child, depth+1)...)
			}
		}
	}

	return posts
}

func postFromObject(obj map[string]any) (vk.Post, bool) {
	id, hasID := obj["id"].(float64)

	text, hasText := obj["text"].(string)
	if !hasID || !hasText || text == "" {
		return vk.Post{}, false
	}

	post := vk.Post{ID: int64(id), Text: text}

	if date, ok := obj["date"].(float64); ok {
		post.Date = int64(date)
	} else {
		post.Date = time.Now().Unix()
	}

	// Attachments survive only when they round-trip into the typed shape.
	if raw, ok := obj["attachments"]; ok {
		if encoded, err := json.Marshal(raw); err == nil {
			var atts []vk.Attachment
			if err := json.Unmarshal(encoded, &atts); err == nil {
				post.Attachments = atts
			}
		}
	}

	return post, true
}

// extractStructural parses the document and pairs each post container
// (data-post-id marker) with its nested text container.
func (s *FullHTMLStrategy) extractStructural(body []byte, count int) []vk.Post {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var posts []vk.Post

	doc.Find("[data-post-id]").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(posts) >= count {
			return false
		}

		marker, _ := sel.Attr("data-post-id")

		m := postIDAttrRe.FindStringSubmatch(marker)
		if m == nil {
			return true
		}

		postID, err := parseInt64(m[2])
		if err != nil {
			return true
		}

		text := htmlutils.Flatten(sel.Find(".wall_post_text").First().Text())
		if len([]rune(text)) <= minPlausibleTextRunes {
			return true
		}

		posts = append(posts, vk.Post{
			ID:   postID,
			Date: s.structuralDate(sel, i),
			Text: text,
		})

		return true
	})

	return posts
}

func (s *FullHTMLStrategy) structuralDate(sel *goquery.Selection, index int) int64 {
	raw, ok := sel.Attr("data-time")
	if !ok {
		raw, _ = sel.Find("[data-time]").First().Attr("data-time")
	}

	if ts, err := parseInt64(raw); err == nil && ts > 0 {
		return ts
	}

	return s.now().Unix() - int64(index)*secondsPerDay
}

// extractLoose pairs all ID markers with all text containers in document
// order by index. The pairing is only correct when
// every post has exactly one text block, which the page does not
// guarantee.
func (s *FullHTMLStrategy) extractLoose(html string, count int) []vk.Post {
	markers := postMarkerRe.FindAllStringSubmatch(html, -1)
	texts := wallPostTextRe.FindAllStringSubmatch(html, -1)

	var posts []vk.Post

	for i, marker := range markers {
		if len(posts) >= count || i >= len(texts) {
			break
		}

		postID, err := parseInt64(marker[2])
		if err != nil {
			continue
		}

		text := htmlutils.Flatten(texts[i][1])
		if len([]rune(text)) <= minPlausibleTextRunes {
			continue
		}

		posts = append(posts, vk.Post{
			ID:   postID,
			Date: s.now().Unix() - int64(len(posts))*secondsPerDay,
			Text: text,
		})
	}

	return posts
}
