package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PresenceResponse reports whether a user is currently reachable.
type PresenceResponse struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// GetPresence reports whether an unexpired presence record exists for the
// user. A crashed client reads as online until its TTL elapses.
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	online, err := h.fast.IsOnline(r.Context(), userID)
	if err != nil {
		h.storeError(w, err, "failed to check presence")
		return
	}

	h.JSON(w, http.StatusOK, PresenceResponse{UserID: userID, Online: online})
}
