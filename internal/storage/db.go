// Package storage provides PostgreSQL access for the sync service.
//
// This package contains:
//   - DB: connection pool wrapper
//   - Repository methods for news records and user accounts
//   - Migration support via goose
//
// Queries are written directly against pgx; the surface is small enough
// that a generator would cost more than it saves.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/okhotnikov/vk-news-sync/migrations"
)

const (
	maxConnectionRetries = 10
	connectionRetrySleep = 2 * time.Second
	migrationLockID      = 1000
)

// DB wraps a PostgreSQL connection pool and provides repository methods.
//
// Session advisory locks are scoped to the connection that takes them, so
// each held lock pins its connection out of the pool until released.
type DB struct {
	Pool   *pgxpool.Pool
	Logger *zerolog.Logger

	mu        sync.Mutex
	lockConns map[int64]*pgxpool.Conn
}

// New connects to the database, retrying while it comes up.
func New(ctx context.Context, dsn string, logger *zerolog.Logger) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	var pool *pgxpool.Pool

	for i := 0; i < maxConnectionRetries; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return &DB{Pool: pool, Logger: logger, lockConns: make(map[int64]*pgxpool.Conn)}, nil
			}
		}

		if pool != nil {
			pool.Close()
		}

		time.Sleep(connectionRetrySleep)
	}

	return nil, fmt.Errorf("failed to connect to database after retries: %w", err)
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

type gooseLogger struct {
	logger *zerolog.Logger
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatal().Msgf(format, v...)
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info().Msgf(format, v...)
}

// Migrate runs database migrations using goose. It acquires a blocking
// advisory lock so only one migration runs at a time across instances.
func (db *DB) Migrate(ctx context.Context) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	defer func() {
		//nolint:errcheck // advisory unlock in defer is best-effort, lock released on connection close anyway
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	dbSQL := stdlib.OpenDB(*db.Pool.Config().ConnConfig)

	defer func() {
		_ = dbSQL.Close()
	}()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(&gooseLogger{logger: db.Logger})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(dbSQL, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// TryAcquireAdvisoryLock takes a session advisory lock without blocking.
// Returns false when another session already holds it.
//
// The lock is taken on a dedicated connection that stays checked out of
// the pool until ReleaseAdvisoryLock; session locks are bound to the
// acquiring connection, and unlocking through the pool could land on a
// different one.
func (db *DB) TryAcquireAdvisoryLock(ctx context.Context, lockID int64) (bool, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		conn.Release()

		return false, fmt.Errorf("try acquire advisory lock: %w", err)
	}

	if !acquired {
		conn.Release()

		return false, nil
	}

	db.mu.Lock()
	db.lockConns[lockID] = conn
	db.mu.Unlock()

	return true, nil
}

// ReleaseAdvisoryLock unlocks on the connection holding the lock and
// returns that connection to the pool. Calling it for a lock this DB does
// not hold is an error.
func (db *DB) ReleaseAdvisoryLock(ctx context.Context, lockID int64) error {
	db.mu.Lock()
	conn := db.lockConns[lockID]
	delete(db.lockConns, lockID)
	db.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("advisory lock %d is not held by this client", lockID)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
		// The lock dies with the session. Close the connection instead
		// of returning it to the pool still holding the lock.
		_ = conn.Hijack().Close(ctx)

		return fmt.Errorf("release advisory lock: %w", err)
	}

	conn.Release()

	return nil
}

// Helpers

func toText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func fromText(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}

	return t.String
}

func toTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}
