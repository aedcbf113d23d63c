// Package handlers provides HTTP handlers for persisted state snapshots.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

// SnapshotReader is the read side of the snapshot repository
type SnapshotReader interface {
	Load(ctx context.Context) (domain.State, bool, error)
	History(ctx context.Context, limit int) ([]snapshots.HistoryEntry, error)
}

// Handler handles snapshot HTTP requests
type Handler struct {
	repo SnapshotReader
	log  zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(repo SnapshotReader, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleGetLatest handles GET /api/snapshots/latest
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	st, ok, err := h.repo.Load(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load snapshot")
		h.writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "no snapshot saved yet")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": st,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetHistory handles GET /api/snapshots/history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.repo.History(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load snapshot history")
		h.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": entries,
		"metadata": map[string]interface{}{
			"count": len(entries),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
