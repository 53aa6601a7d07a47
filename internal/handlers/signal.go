package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/consultly/realtime/internal/bus"
	"github.com/consultly/realtime/internal/models"
	"github.com/consultly/realtime/internal/store"
)

// SendSignalRequest represents the send signal request body.
type SendSignalRequest struct {
	SessionID string          `json:"sessionId"`
	Type      string          `json:"type"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Data      json.RawMessage `json:"data"`
}

// SendSignal stores a handshake envelope in the relay and publishes it on
// the session's signal topic plus the recipient's user topic, so a
// live-connected peer receives it without polling. A newer envelope for the
// same (session, type) pair overwrites the previous one.
func (h *Handler) SendSignal(w http.ResponseWriter, r *http.Request) {
	var req SendSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch {
	case req.SessionID == "":
		h.Error(w, http.StatusBadRequest, "sessionId is required")
		return
	case req.Type == "":
		h.Error(w, http.StatusBadRequest, "type is required")
		return
	case req.From == "":
		h.Error(w, http.StatusBadRequest, "from is required")
		return
	case req.To == "":
		h.Error(w, http.StatusBadRequest, "to is required")
		return
	case len(req.Data) == 0:
		h.Error(w, http.StatusBadRequest, "data is required")
		return
	}

	env := &models.SignalEnvelope{
		SessionID: req.SessionID,
		Type:      req.Type,
		From:      req.From,
		To:        req.To,
		Data:      req.Data,
	}

	if err := h.fast.PutSignal(r.Context(), env); err != nil {
		h.storeError(w, err, "failed to store signal")
		return
	}

	ev, err := models.NewEvent(models.TypeWebRTCSignal, env)
	if err != nil {
		h.storeError(w, err, "failed to encode signal event")
		return
	}
	if !h.publish(w, r, bus.SignalTopic(env.SessionID), ev) {
		return
	}
	// Cross-session copy for a peer connected without this session declared.
	if err := h.bus.Publish(r.Context(), bus.UserTopic(env.To), ev); err != nil {
		h.logger.Warn().Err(err).Str("user_id", env.To).Msg("user-topic signal publish failed")
	}

	h.JSON(w, http.StatusOK, env)
}

// GetSignal retrieves the current envelope for a (session, type) pair. This
// is the catch-up path for a peer that connected after the publish; reads do
// not consume the entry.
func (h *Handler) GetSignal(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	signalType := r.URL.Query().Get("type")

	switch {
	case sessionID == "":
		h.Error(w, http.StatusBadRequest, "sessionId is required")
		return
	case signalType == "":
		h.Error(w, http.StatusBadRequest, "type is required")
		return
	}

	env, err := h.fast.GetSignal(r.Context(), sessionID, signalType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, "signal not found")
			return
		}
		h.storeError(w, err, "failed to fetch signal")
		return
	}

	h.JSON(w, http.StatusOK, env)
}
