package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/okhotnikov/vk-news-sync/internal/platform/observability"
	"github.com/okhotnikov/vk-news-sync/internal/platform/worker"
	"github.com/okhotnikov/vk-news-sync/internal/vk"
)

// Cascade errors.
var (
	// ErrAllStrategiesFailed indicates every extraction strategy either
	// failed or produced zero posts. Callers treat this as "fetch broken",
	// distinct from a successful fetch that found nothing new.
	ErrAllStrategiesFailed = errors.New("all fetch strategies failed")

	// ErrNoPosts indicates a strategy ran cleanly but extracted nothing.
	ErrNoPosts = errors.New("no posts extracted")
)

const (
	logFieldStrategy = "strategy"
	logFieldFallback = "fallback"
	logFieldCount    = "count"
)

// Strategy is one way of acquiring wall posts. Implementations must be
// safe for sequential reuse; the cascade never calls them concurrently.
type Strategy interface {
	Name() string
	FetchPosts(ctx context.Context, count, offset int) ([]vk.Post, error)
}

// Fetcher tries strategies strictly in priority order and returns the
// first non-empty, well-formed result set. A failed strategy is never
// retried within one fetch.
type Fetcher struct {
	strategies []Strategy
	pageDelay  time.Duration
	logger     *zerolog.Logger
}

// NewFetcher creates a cascade over the given strategies, tried in order.
func NewFetcher(logger *zerolog.Logger, pageDelay time.Duration, strategies ...Strategy) *Fetcher {
	if pageDelay <= 0 {
		pageDelay = time.Second
	}

	return &Fetcher{strategies: strategies, pageDelay: pageDelay, logger: logger}
}

// FetchPosts runs the cascade. Results come back in the order the winning
// strategy produced them, which for the source platform is newest-first.
func (f *Fetcher) FetchPosts(ctx context.Context, count, offset int) ([]vk.Post, error) {
	var lastErr error

	for i, strategy := range f.strategies {
		observability.StrategyAttempts.WithLabelValues(strategy.Name()).Inc()

		posts, err := strategy.FetchPosts(ctx, count, offset)
		if err == nil && len(posts) == 0 {
			err = ErrNoPosts
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
			}

			lastErr = err
			f.logFallback(i, strategy.Name(), err)

			continue
		}

		observability.StrategySuccesses.WithLabelValues(strategy.Name()).Inc()
		f.logger.Info().
			Str(logFieldStrategy, strategy.Name()).
			Int(logFieldCount, len(posts)).
			Msg("posts fetched")

		return posts, nil
	}

	return nil, fmt.Errorf("%w: last error: %w", ErrAllStrategiesFailed, lastErr)
}

func (f *Fetcher) logFallback(idx int, name string, err error) {
	evt := f.logger.Warn().Str(logFieldStrategy, name).Err(err)

	if idx+1 < len(f.strategies) {
		evt.Str(logFieldFallback, f.strategies[idx+1].Name()).Msg("strategy failed, falling back")
		return
	}

	evt.Msg("strategy failed, cascade exhausted")
}

// FetchAll pages through the wall until it runs dry or maxPosts is
// reached, sleeping between pages to respect the platform's rate limits.
// Used by the backfill path; incremental sync only ever needs one page.
func (f *Fetcher) FetchAll(ctx context.Context, pageSize, maxPosts int) ([]vk.Post, error) {
	var all []vk.Post

	for offset := 0; ; offset += pageSize {
		posts, err := f.FetchPosts(ctx, pageSize, offset)
		if err != nil {
			if errors.Is(err, ErrAllStrategiesFailed) && len(all) > 0 {
				// A later page failing does not invalidate what we have.
				return all, nil
			}

			return nil, err
		}

		all = append(all, posts...)

		if maxPosts > 0 && len(all) >= maxPosts {
			return all[:maxPosts], nil
		}

		// Fallback strategies cannot paginate; a short page means the
		// wall is exhausted either way.
		if len(posts) < pageSize {
			return all, nil
		}

		if err := worker.Wait(ctx, f.pageDelay); err != nil {
			return nil, err
		}
	}
}
