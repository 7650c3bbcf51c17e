package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/vidrelay/vidrelay/internal/store"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	kv store.KV
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(kv store.KV) *HealthHandler {
	return &HealthHandler{kv: kv}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	State     *StateStats `json:"state,omitempty"`
}

// StateStats counts the live reservation entries.
type StateStats struct {
	Posts int `json:"posts"`
	Media int `json:"media"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. Not ready when the
// reservation store can't be read.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	posts, err := h.kv.ListPrefix(ctx, "post:")
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	media, _ := h.kv.ListPrefix(ctx, "media:")

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		State: &StateStats{
			Posts: len(posts),
			Media: len(media),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
