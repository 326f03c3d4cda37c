package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/okhotnikov/vk-news-sync/internal/app"
	"github.com/okhotnikov/vk-news-sync/internal/platform/config"
	db "github.com/okhotnikov/vk-news-sync/internal/storage"
)

func main() {
	mode := flag.String("mode", "", "Service mode (daemon, sync, backfill)")
	limit := flag.Int("limit", 0, "Max posts to import (for backfill mode, 0 = no limit)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.PostgresDSN, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	application := app.New(cfg, database, &logger)

	// Start health server in background
	go func() {
		if err := application.StartHealthServer(ctx); err != nil {
			logger.Error().Err(err).Msg("health check server error")
		}
	}()

	if err := runMode(ctx, application, *mode, *limit); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func runMode(ctx context.Context, application *app.App, mode string, limit int) error {
	switch mode {
	case "daemon":
		return application.RunDaemon(ctx)
	case "sync":
		return application.RunSync(ctx)
	case "backfill":
		return application.RunBackfill(ctx, limit)
	default:
		log.Fatalf("Usage: %s --mode=[daemon|sync|backfill]", os.Args[0])

		return nil
	}
}
