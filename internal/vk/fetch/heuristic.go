package fetch

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/okhotnikov/vk-news-sync/internal/platform/htmlutils"
	"github.com/okhotnikov/vk-news-sync/internal/vk"
)

const (
	// minPlausibleTextRunes is the bar a recovered candidate must clear;
	// shorter matches are almost always markup noise.
	minPlausibleTextRunes = 10
	maxRecoveredTextRunes = 10000
	secondsPerDay         = 86400
)

var (
	postMarkerRe = regexp.MustCompile(`data-post-id="(-?\d+)_(\d+)"`)

	// plausibleTextRe matches a run of 30-500 characters that looks like
	// Russian or English prose. A proximity proxy for the post body, not
	// a structural parse; expected to be noisy.
	plausibleTextRe = regexp.MustCompile(`(?is)>[^<]*?([А-Яа-яA-Za-z0-9\s.,!?:;\-]{30,500})`)

	blockTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<div[^>]*class="[^"]*wall_post_text[^"]*"[^>]*>(.*?)</div>`),
		regexp.MustCompile(`(?is)<div[^>]*class="[^"]*post_text[^"]*"[^>]*>(.*?)</div>`),
		regexp.MustCompile(`(?is)<div[^>]*class="[^"]*pi_text[^"]*"[^>]*>(.*?)</div>`),
	}
)

// HeuristicStrategy scrapes the group's desktop page and recovers post
// text by proximity matching around data-post-id markers. Fast and
// token-free, but fragile: it survives markup changes the structural
// parsers choke on, at the cost of noisy text.
type HeuristicStrategy struct {
	client  *Client
	groupID int64
	now     func() time.Time
}

// NewHeuristicStrategy creates the strategy for the given group. groupID
// is the positive group number.
func NewHeuristicStrategy(client *Client, groupID int64) *HeuristicStrategy {
	return &HeuristicStrategy{client: client, groupID: groupID, now: time.Now}
}

func (s *HeuristicStrategy) Name() string { return "heuristic-html" }

// FetchPosts extracts up to count posts from the desktop group page.
func (s *HeuristicStrategy) FetchPosts(ctx context.Context, count, offset int) ([]vk.Post, error) {
	pageURL := fmt.Sprintf("https://vk.com/club%d", s.groupID)

	body, err := s.client.Get(ctx, pageURL, desktopHeaders())
	if err != nil {
		return nil, fmt.Errorf("fetch group page: %w", err)
	}

	return s.extractPosts(string(body), count, offset)
}

// extractPosts slices the page into per-post blocks between consecutive
// data-post-id markers and recovers text and date from each block.
func (s *HeuristicStrategy) extractPosts(html string, count, offset int) ([]vk.Post, error) {
	markers := postMarkerRe.FindAllStringSubmatchIndex(html, -1)
	posts := make([]vk.Post, 0, len(markers))

	for i, marker := range markers {
		if len(posts) >= offset+count {
			break
		}

		postID, err := parseInt64(html[marker[4]:marker[5]])
		if err != nil {
			continue
		}

		blockEnd := len(html)
		if i+1 < len(markers) {
			blockEnd = markers[i+1][0]
		}

		block := html[marker[0]:blockEnd]

		text := s.extractText(block)
		if len([]rune(text)) <= minPlausibleTextRunes {
			continue
		}

		posts = append(posts, vk.Post{
			ID:   postID,
			Date: s.extractDate(block, i),
			Text: truncateRunes(text, maxRecoveredTextRunes),
		})
	}

	if len(posts) <= offset {
		return nil, fmt.Errorf("heuristic extraction: %w", ErrNoPosts)
	}

	end := offset + count
	if end > len(posts) {
		end = len(posts)
	}

	return posts[offset:end], nil
}

// extractText tries the known text-container classes first, then falls
// back to the first plausible prose run inside the marker's block.
func (s *HeuristicStrategy) extractText(block string) string {
	for _, pattern := range blockTextPatterns {
		if m := pattern.FindStringSubmatch(block); m != nil {
			return htmlutils.Flatten(m[1])
		}
	}

	if m := plausibleTextRe.FindStringSubmatch(block); m != nil {
		return htmlutils.Flatten(m[1])
	}

	return ""
}

var dataTimeRe = regexp.MustCompile(`data-time="(\d+)"`)

// extractDate reads the companion data-time attribute when present, else
// synthesizes a decreasing timestamp so relative ordering is preserved.
func (s *HeuristicStrategy) extractDate(block string, index int) int64 {
	if m := dataTimeRe.FindStringSubmatch(block); m != nil {
		if ts, err := parseInt64(m[1]); err == nil {
			return ts
		}
	}

	return s.now().Unix() - int64(index)*secondsPerDay
}

func truncateRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}

	return string(runes[:maxRunes])
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
