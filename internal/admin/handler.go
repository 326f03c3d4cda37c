// Package admin exposes the manual sync trigger as an HTTP endpoint.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/okhotnikov/vk-news-sync/internal/ingest"
)

// SyncResponse is the JSON body of a successful manual sync.
type SyncResponse struct {
	Success       bool     `json:"success"`
	NewPostsCount int      `json:"newPostsCount"`
	Checked       int      `json:"checked"`
	Errors        []string `json:"errors,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SyncHandler handles POST requests by running a full manual sync and
// returning the import summary.
type SyncHandler struct {
	syncer *ingest.Syncer
	logger *zerolog.Logger
}

// NewSyncHandler creates the handler.
func NewSyncHandler(syncer *ingest.Syncer, logger *zerolog.Logger) *SyncHandler {
	return &SyncHandler{syncer: syncer, logger: logger}
}

func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})

		return
	}

	result, err := h.syncer.SyncOnce(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("manual sync failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{
		Success:       true,
		NewPostsCount: result.Imported,
		Checked:       result.Checked,
		Errors:        result.Errors,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
