package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/consultly/realtime/internal/bus"
	"github.com/consultly/realtime/internal/models"
	"github.com/consultly/realtime/internal/store"
)

// UpdateStatusRequest represents the session status update request body.
type UpdateStatusRequest struct {
	SessionID string                 `json:"sessionId"`
	Status    string                 `json:"status"`
	UserID    string                 `json:"userId,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// UpdateSessionStatus stores the session's status record, publishes the
// update on the session's status topic and enqueues the durable mirror
// write.
func (h *Handler) UpdateSessionStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch {
	case req.SessionID == "":
		h.Error(w, http.StatusBadRequest, "sessionId is required")
		return
	case req.Status == "":
		h.Error(w, http.StatusBadRequest, "status is required")
		return
	}

	st := &models.SessionStatus{
		SessionID: req.SessionID,
		Status:    req.Status,
		UserID:    req.UserID,
		Metadata:  req.Metadata,
	}

	if err := h.fast.SetSessionStatus(r.Context(), st); err != nil {
		h.storeError(w, err, "failed to store session status")
		return
	}

	ev, err := models.NewEvent(models.TypeSessionUpdate, st)
	if err != nil {
		h.storeError(w, err, "failed to encode status event")
		return
	}
	if !h.publish(w, r, bus.StatusTopic(st.SessionID), ev) {
		return
	}

	h.mirror.Enqueue(ev)

	h.JSON(w, http.StatusOK, st)
}

// GetSessionStatus retrieves a session's current status record.
func (h *Handler) GetSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	st, err := h.fast.GetSessionStatus(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, "session status not found")
			return
		}
		h.storeError(w, err, "failed to fetch session status")
		return
	}

	h.JSON(w, http.StatusOK, st)
}
