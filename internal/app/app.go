// Package app provides the application bootstrap and runtime
// orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// the operational modes:
//
//   - Daemon mode: periodic incremental sync on an interval timer
//   - Sync mode: one manual full-batch sync, then exit
//   - Backfill mode: one-shot full-history import, then exit
//
// The health/metrics server runs alongside every mode and carries the
// manual sync trigger endpoint.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/okhotnikov/vk-news-sync/internal/admin"
	"github.com/okhotnikov/vk-news-sync/internal/ingest"
	"github.com/okhotnikov/vk-news-sync/internal/platform/config"
	"github.com/okhotnikov/vk-news-sync/internal/platform/observability"
	"github.com/okhotnikov/vk-news-sync/internal/platform/worker"
	"github.com/okhotnikov/vk-news-sync/internal/storage"
	"github.com/okhotnikov/vk-news-sync/internal/vk/fetch"
)

// App holds the application dependencies.
type App struct {
	cfg      *config.Config
	database *storage.DB
	syncer   *ingest.Syncer
	logger   *zerolog.Logger
}

// New wires the fetch cascade, pipeline, and syncer.
func New(cfg *config.Config, database *storage.DB, logger *zerolog.Logger) *App {
	client := fetch.NewClient(cfg.FetchRPS, cfg.FetchTimeout)

	fetcher := fetch.NewFetcher(logger, cfg.BackfillPageDelay,
		fetch.NewAPIStrategy(client, cfg.OwnerID()),
		fetch.NewHeuristicStrategy(client, cfg.VKGroupID),
		fetch.NewRSSStrategy(client, cfg.VKGroupID),
		fetch.NewFullHTMLStrategy(client, cfg.VKGroupID),
	)

	pipeline := ingest.NewPipeline(database, cfg.OwnerID(), cfg.ExcerptMaxLen, logger)

	syncer := ingest.NewSyncer(ingest.SyncerConfig{
		Fetcher:   fetcher,
		Pipeline:  pipeline,
		Admins:    database,
		Locker:    database,
		// Keyed on the group so two services syncing different groups
		// against one database do not serialize each other.
		LockID:    cfg.VKGroupID,
		BatchSize: cfg.SyncBatchSize,
	}, logger)

	return &App{cfg: cfg, database: database, syncer: syncer, logger: logger}
}

// StartHealthServer starts the health check and metrics server with the
// manual sync endpoint mounted.
func (a *App) StartHealthServer(ctx context.Context) error {
	handler := admin.NewSyncHandler(a.syncer, a.logger)
	server := observability.NewServerWithAdmin(a.database, a.cfg.HealthPort, handler, a.logger)

	return server.Start(ctx)
}

// RunDaemon runs the periodic sync loop: one cycle immediately, then one
// per interval, until the context is canceled.
func (a *App) RunDaemon(ctx context.Context) error {
	a.logger.Info().
		Dur("interval", a.cfg.SyncInterval).
		Int64("group_id", a.cfg.VKGroupID).
		Msg("sync daemon starting")

	return worker.SingleTickerLoop(ctx, worker.SingleTickerConfig{
		Name:       "vk-sync",
		Interval:   a.cfg.SyncInterval,
		OnTick:     a.syncer.RunCycle,
		RunOnStart: true,
		Logger:     a.logger,
	})
}

// RunSync performs one manual sync and logs the summary.
func (a *App) RunSync(ctx context.Context) error {
	result, err := a.syncer.SyncOnce(ctx)
	if err != nil {
		return fmt.Errorf("manual sync: %w", err)
	}

	a.logResult("manual sync finished", result)

	return nil
}

// RunBackfill imports the full wall history, up to limit posts when
// limit is positive.
func (a *App) RunBackfill(ctx context.Context, limit int) error {
	result, err := a.syncer.Backfill(ctx, a.cfg.BackfillPageSize, limit)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	a.logResult("backfill finished", result)

	return nil
}

func (a *App) logResult(msg string, result *ingest.Result) {
	a.logger.Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("checked", result.Checked).
		Int("errors", len(result.Errors)).
		Msg(msg)

	for _, e := range result.Errors {
		a.logger.Warn().Str("detail", e).Msg("import error")
	}
}
