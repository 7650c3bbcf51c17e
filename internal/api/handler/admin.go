package handler

import (
	"net/http"

	"github.com/vidrelay/vidrelay/internal/store"
)

// AdminHandler handles authenticated administrative endpoints.
type AdminHandler struct {
	res *store.Reservations
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(res *store.Reservations) *AdminHandler {
	return &AdminHandler{res: res}
}

// WipeResponse is the JSON response for a state wipe.
type WipeResponse struct {
	Removed int `json:"removed"`
}

// WipeState handles DELETE /api/v1/state - drop every reservation so the
// next pass reprocesses the whole feed window.
func (h *AdminHandler) WipeState(w http.ResponseWriter, r *http.Request) {
	removed, err := h.res.Wipe(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, WipeResponse{Removed: removed})
}
