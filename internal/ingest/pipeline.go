// Package ingest turns fetched wall posts into persisted news records.
//
// The pipeline is idempotent: the source post ID is a unique key, so
// re-running over the same posts never duplicates a record. All writes
// are creates; a failure mid-batch leaves a valid, resumable prefix.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/okhotnikov/vk-news-sync/internal/platform/observability"
	"github.com/okhotnikov/vk-news-sync/internal/storage"
	"github.com/okhotnikov/vk-news-sync/internal/vk"
)

// Pipeline errors.
var (
	// ErrSlugSpaceExhausted indicates the slug-probing loop hit its cap.
	// Practically impossible against a healthy store; the cap exists so a
	// pathological store cannot spin the loop forever.
	ErrSlugSpaceExhausted = errors.New("slug space exhausted")
)

// maxSlugProbes caps the uniqueness-probing suffix loop.
const maxSlugProbes = 1000

// Store is the persistence surface the pipeline needs. Lookups return
// (nil, nil) when no record matches.
type Store interface {
	FindNewsByVKPostID(ctx context.Context, vkPostID string) (*storage.News, error)
	FindNewsBySlug(ctx context.Context, slug string) (*storage.News, error)
	CreateNews(ctx context.Context, n *storage.News) error
}

// Result summarizes one pipeline run.
type Result struct {
	Imported int
	Skipped  int
	Checked  int
	Errors   []string
}

// postOutcome classifies what processPost did with one post. The daemon
// path stops only on outcomeAlreadySeen: an empty post says nothing about
// what is behind it in the batch.
type postOutcome int

const (
	outcomeEmpty postOutcome = iota
	outcomeAlreadySeen
	outcomeImported
)

// Pipeline normalizes fetched posts and writes news records.
type Pipeline struct {
	store      Store
	ownerID    int64
	excerptMax int
	logger     *zerolog.Logger
}

// NewPipeline creates a pipeline writing to store. ownerID is the
// negative wall owner ID used for permalinks; excerptMax bounds derived
// excerpts (0 means the default).
func NewPipeline(store Store, ownerID int64, excerptMax int, logger *zerolog.Logger) *Pipeline {
	if excerptMax <= 0 {
		excerptMax = vk.DefaultExcerptLen
	}

	return &Pipeline{store: store, ownerID: ownerID, excerptMax: excerptMax, logger: logger}
}

// Run processes posts in fetch order, attributing created records to
// authorID. With stopAtSeen set the run halts at the first post already
// present in the store. That is valid only when posts are ordered
// newest-first, which is what the source returns. Empty posts never stop
// the run; they are skipped in both modes.
//
// A failure on one post is recorded and never aborts the batch.
func (p *Pipeline) Run(ctx context.Context, posts []vk.Post, authorID string, stopAtSeen bool) (*Result, error) {
	result := &Result{Checked: len(posts)}

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("ingestion canceled: %w", err)
		}

		outcome, err := p.processPost(ctx, post, authorID)

		switch {
		case err != nil:
			observability.PostErrors.Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("post %d: %v", post.ID, err))
			p.logger.Error().Err(err).Int64("post_id", post.ID).Msg("post import failed")
		case outcome == outcomeImported:
			observability.PostsImported.Inc()
			result.Imported++
		default:
			observability.PostsSkipped.Inc()
			result.Skipped++

			if stopAtSeen && outcome == outcomeAlreadySeen {
				// Posts arrive newest-first; everything behind an
				// already-imported post has been seen before.
				return result, nil
			}
		}
	}

	return result, nil
}

// processPost imports a single post. A nil error with a non-imported
// outcome means the post was skipped.
func (p *Pipeline) processPost(ctx context.Context, post vk.Post, authorID string) (postOutcome, error) {
	vkPostID := strconv.FormatInt(post.ID, 10)

	existing, err := p.store.FindNewsByVKPostID(ctx, vkPostID)
	if err != nil {
		return outcomeEmpty, fmt.Errorf("dedup lookup: %w", err)
	}

	if existing != nil {
		return outcomeAlreadySeen, nil
	}

	if strings.TrimSpace(post.Text) == "" {
		return outcomeEmpty, nil
	}

	cleaned := vk.CleanText(post.Text)

	title := vk.Title(cleaned)
	if title == "" {
		title = fmt.Sprintf("Post #%d", post.ID)
	}

	slug, err := p.uniqueSlug(ctx, vk.Slug(title, post.ID))
	if err != nil {
		return outcomeEmpty, err
	}

	content := cleaned
	if content == "" {
		content = title
	}

	excerpt := vk.Excerpt(cleaned, p.excerptMax)
	if excerpt == "" {
		excerpt = vk.Excerpt(title, p.excerptMax)
	}

	record := &storage.News{
		Title:       title,
		Slug:        slug,
		Content:     content,
		Excerpt:     excerpt,
		Image:       vk.LargestPhoto(post),
		Published:   true,
		PublishedAt: time.Unix(post.Date, 0),
		VKPostID:    vkPostID,
		VKLink:      vk.PostLink(p.ownerID, post.ID),
		AuthorID:    authorID,
	}

	if err := p.store.CreateNews(ctx, record); err != nil {
		return outcomeEmpty, fmt.Errorf("create record: %w", err)
	}

	p.logger.Info().Int64("post_id", post.ID).Str("slug", slug).Msg("post imported")

	return outcomeImported, nil
}

// uniqueSlug probes the store for a free slug, appending -1, -2, ...
// until one is available.
func (p *Pipeline) uniqueSlug(ctx context.Context, base string) (string, error) {
	slug := base

	for probe := 1; probe <= maxSlugProbes; probe++ {
		existing, err := p.store.FindNewsBySlug(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("slug lookup: %w", err)
		}

		if existing == nil {
			return slug, nil
		}

		slug = fmt.Sprintf("%s-%d", base, probe)
	}

	return "", fmt.Errorf("%w: base %q", ErrSlugSpaceExhausted, base)
}
