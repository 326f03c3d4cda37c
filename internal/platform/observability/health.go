// Package observability provides the health/metrics HTTP server and the
// Prometheus metrics for the sync service.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/okhotnikov/vk-news-sync/internal/storage"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second

	adminSyncPath = "/api/admin/vk/sync"
)

// Server serves /healthz, /readyz, /metrics, and optionally the manual
// sync trigger endpoint.
type Server struct {
	db           *storage.DB
	port         int
	logger       *zerolog.Logger
	adminHandler http.Handler
}

// NewServer creates a health server without the admin endpoint.
func NewServer(db *storage.DB, port int, logger *zerolog.Logger) *Server {
	return &Server{db: db, port: port, logger: logger}
}

// NewServerWithAdmin creates a health server that also mounts the manual
// sync trigger handler.
func NewServerWithAdmin(db *storage.DB, port int, adminHandler http.Handler, logger *zerolog.Logger) *Server {
	return &Server{db: db, port: port, logger: logger, adminHandler: adminHandler}
}

// Start runs the server until ctx is canceled, then shuts down with a
// bounded grace period.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK")
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "DB error: %v", err)

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK")
	})

	mux.Handle("/metrics", promhttp.Handler())

	if s.adminHandler != nil {
		mux.Handle(adminSyncPath, s.adminHandler)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		//nolint:errcheck,contextcheck // shutdown in signal handler is best-effort, non-inherited context intentional
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.port).Msg("Health check server starting")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}

	return nil
}
