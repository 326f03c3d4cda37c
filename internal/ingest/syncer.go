package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/okhotnikov/vk-news-sync/internal/platform/observability"
	"github.com/okhotnikov/vk-news-sync/internal/storage"
	"github.com/okhotnikov/vk-news-sync/internal/vk"
)

// Syncer errors.
var (
	// ErrNoAdminAccount indicates no account with the admin role exists
	// to attribute imported records to. Fatal to a sync run.
	ErrNoAdminAccount = errors.New("no administrator account found")

	// ErrSyncInProgress indicates another sync run holds the lock.
	ErrSyncInProgress = errors.New("sync already in progress")
)

const (
	metricStatusOK     = "ok"
	metricStatusFailed = "failed"
)

// PostFetcher acquires the most recent wall posts, newest-first.
type PostFetcher interface {
	FetchPosts(ctx context.Context, count, offset int) ([]vk.Post, error)
	FetchAll(ctx context.Context, pageSize, maxPosts int) ([]vk.Post, error)
}

// AdminFinder locates the account imported posts are attributed to.
type AdminFinder interface {
	FindFirstAdmin(ctx context.Context) (*storage.User, error)
}

// Locker serializes sync runs across processes. The manual trigger and
// the daemon share one database; without mutual exclusion they could
// race to create the same slug or post.
type Locker interface {
	TryAcquireAdvisoryLock(ctx context.Context, lockID int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, lockID int64) error
}

// Syncer drives the ingestion pipeline from its external triggers: the
// manual admin action, the periodic daemon, and the one-shot backfill.
type Syncer struct {
	fetcher   PostFetcher
	pipeline  *Pipeline
	admins    AdminFinder
	locker    Locker
	lockID    int64
	batchSize int
	logger    *zerolog.Logger
}

// SyncerConfig wires a Syncer.
type SyncerConfig struct {
	Fetcher   PostFetcher
	Pipeline  *Pipeline
	Admins    AdminFinder
	Locker    Locker
	LockID    int64
	BatchSize int
}

// NewSyncer creates a Syncer.
func NewSyncer(cfg SyncerConfig, logger *zerolog.Logger) *Syncer {
	return &Syncer{
		fetcher:   cfg.Fetcher,
		pipeline:  cfg.Pipeline,
		admins:    cfg.Admins,
		locker:    cfg.Locker,
		lockID:    cfg.LockID,
		batchSize: cfg.BatchSize,
		logger:    logger,
	}
}

// SyncOnce is the manual trigger: fetch the most recent batch and run the
// pipeline over all of it. Already-imported posts are skipped per-post
// rather than stopping the scan, so a manual sync also picks up older
// posts that became visible late.
func (s *Syncer) SyncOnce(ctx context.Context) (*Result, error) {
	return s.withLock(ctx, func(ctx context.Context) (*Result, error) {
		posts, err := s.fetcher.FetchPosts(ctx, s.batchSize, 0)
		if err != nil {
			return nil, fmt.Errorf("fetch posts: %w", err)
		}

		return s.ingest(ctx, posts, false)
	})
}

// RunCycle is one daemon iteration. Results are newest-first, so the
// cycle stops at the first already-imported post instead of scanning the
// whole batch. Errors are logged, not returned: the daemon has no caller
// to surface them to and simply waits for the next tick.
func (s *Syncer) RunCycle(ctx context.Context) {
	start := time.Now()

	result, err := s.withLock(ctx, func(ctx context.Context) (*Result, error) {
		posts, err := s.fetcher.FetchPosts(ctx, s.batchSize, 0)
		if err != nil {
			return nil, fmt.Errorf("fetch posts: %w", err)
		}

		return s.ingest(ctx, posts, true)
	})

	observability.SyncCycleDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		observability.SyncCycles.WithLabelValues(metricStatusFailed).Inc()
		s.logger.Error().Err(err).Msg("sync cycle failed")

		return
	}

	observability.SyncCycles.WithLabelValues(metricStatusOK).Inc()

	if result.Imported > 0 {
		s.logger.Info().Int("imported", result.Imported).Msg("new posts imported")
	} else {
		s.logger.Info().Msg("no new posts")
	}
}

// Backfill imports the wall history: pages through all posts (up to
// limit when positive) and runs the full-scan pipeline over them.
func (s *Syncer) Backfill(ctx context.Context, pageSize, limit int) (*Result, error) {
	return s.withLock(ctx, func(ctx context.Context) (*Result, error) {
		posts, err := s.fetcher.FetchAll(ctx, pageSize, limit)
		if err != nil {
			return nil, fmt.Errorf("fetch all posts: %w", err)
		}

		s.logger.Info().Int("count", len(posts)).Msg("posts fetched for backfill")

		return s.ingest(ctx, posts, false)
	})
}

func (s *Syncer) ingest(ctx context.Context, posts []vk.Post, stopAtSeen bool) (*Result, error) {
	admin, err := s.admins.FindFirstAdmin(ctx)
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}

	if admin == nil {
		return nil, ErrNoAdminAccount
	}

	return s.pipeline.Run(ctx, posts, admin.ID, stopAtSeen)
}

// withLock wraps a run in the advisory lock when a locker is configured.
func (s *Syncer) withLock(ctx context.Context, run func(ctx context.Context) (*Result, error)) (*Result, error) {
	if s.locker == nil {
		return run(ctx)
	}

	acquired, err := s.locker.TryAcquireAdvisoryLock(ctx, s.lockID)
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}

	if !acquired {
		return nil, ErrSyncInProgress
	}

	defer func() {
		if err := s.locker.ReleaseAdvisoryLock(ctx, s.lockID); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release sync lock")
		}
	}()

	return run(ctx)
}
