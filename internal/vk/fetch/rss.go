package fetch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/okhotnikov/vk-news-sync/internal/platform/htmlutils"
	"github.com/okhotnikov/vk-news-sync/internal/vk"
)

// ErrFeedUnavailable indicates every candidate RSS endpoint failed.
var ErrFeedUnavailable = errors.New("all RSS feeds unavailable")

// minFeedBodyBytes filters out trivial bodies (error pages, empty
// documents) that technically return 200.
const minFeedBodyBytes = 100

var wallLinkIDRe = regexp.MustCompile(`wall-\d+_(\d+)`)

// RSSStrategy reads one of several candidate RSS endpoints for the group
// wall. Feed items carry real dates and permalinks but no attachments.
type RSSStrategy struct {
	client   *Client
	groupID  int64
	feedURLs []string
	parser   *gofeed.Parser
	now      func() time.Time
}

// NewRSSStrategy creates the strategy for the given positive group ID.
func NewRSSStrategy(client *Client, groupID int64) *RSSStrategy {
	return &RSSStrategy{
		client:  client,
		groupID: groupID,
		feedURLs: []string{
			fmt.Sprintf("https://vk.com/rss.php?owner_id=-%d", groupID),
			fmt.Sprintf("https://vk.com/feed?section=rss&owner_id=-%d", groupID),
			fmt.Sprintf("https://m.vk.com/rss.php?owner_id=-%d", groupID),
		},
		parser: gofeed.NewParser(),
		now:    time.Now,
	}
}

func (s *RSSStrategy) Name() string { return "rss" }

// FetchPosts tries the candidate endpoints in order and converts the
// items of the first non-trivial feed. Later candidates are not tried
// once one succeeds.
func (s *RSSStrategy) FetchPosts(ctx context.Context, count, offset int) ([]vk.Post, error) {
	var lastErr error

	for _, feedURL := range s.feedURLs {
		body, err := s.client.Get(ctx, feedURL, feedHeaders())
		if err != nil {
			lastErr = err
			continue
		}

		if len(body) < minFeedBodyBytes {
			lastErr = fmt.Errorf("feed body too small: %d bytes", len(body))
			continue
		}

		feed, err := s.parser.ParseString(string(body))
		if err != nil {
			lastErr = fmt.Errorf("parse feed: %w", err)
			continue
		}

		return s.convertItems(feed.Items, count, offset), nil
	}

	if lastErr == nil {
		return nil, ErrFeedUnavailable
	}

	return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, lastErr)
}

func (s *RSSStrategy) convertItems(items []*gofeed.Item, count, offset int) []vk.Post {
	posts := make([]vk.Post, 0, count)

	for i := offset; i < len(items) && i < offset+count; i++ {
		item := items[i]

		text := item.Description
		if text == "" {
			text = item.Title
		}

		text = htmlutils.Flatten(text)
		if text == "" {
			continue
		}

		posts = append(posts, vk.Post{
			ID:   s.itemPostID(item, i),
			Date: s.itemDate(item, i),
			Text: text,
		})
	}

	return posts
}

// itemPostID recovers the native post ID from the item permalink. When
// the link carries no wall token a synthetic ID is generated; synthetic
// IDs must not be trusted for dedup against API-sourced posts.
func (s *RSSStrategy) itemPostID(item *gofeed.Item, index int) int64 {
	if m := wallLinkIDRe.FindStringSubmatch(item.Link); m != nil {
		if id, err := parseInt64(m[1]); err == nil {
			return id
		}
	}

	return s.now().UnixMilli() - int64(index)
}

// itemDate parses pubDate, falling back to a decreasing synthetic
// timestamp so feed order survives missing dates.
func (s *RSSStrategy) itemDate(item *gofeed.Item, index int) int64 {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.Unix()
	}

	if item.Published != "" {
		if t, err := dateparse.ParseAny(item.Published); err == nil {
			return t.Unix()
		}
	}

	return s.now().Unix() - int64(index)*secondsPerDay
}
