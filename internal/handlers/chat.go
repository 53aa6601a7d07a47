package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/consultly/realtime/internal/bus"
	"github.com/consultly/realtime/internal/models"
)

const defaultMessageLimit = 50

// SendMessageRequest represents the send chat message request body.
type SendMessageRequest struct {
	SessionID  string `json:"sessionId"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	Type       string `json:"type"`
}

// MessagesResponse represents the list chat messages response.
type MessagesResponse struct {
	Messages []models.ChatMessage `json:"messages"`
}

// SendMessage appends a chat message to the session's channel, publishes it
// on the bus and enqueues the durable mirror write.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch {
	case req.SessionID == "":
		h.Error(w, http.StatusBadRequest, "sessionId is required")
		return
	case req.SenderID == "":
		h.Error(w, http.StatusBadRequest, "senderId is required")
		return
	case req.ReceiverID == "":
		h.Error(w, http.StatusBadRequest, "receiverId is required")
		return
	case req.Content == "":
		h.Error(w, http.StatusBadRequest, "content is required")
		return
	case req.Type == "":
		h.Error(w, http.StatusBadRequest, "type is required")
		return
	}

	msg := &models.ChatMessage{
		SessionID:  req.SessionID,
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		Type:       req.Type,
	}

	// Fast path: store (assigns id and timestamp), then publish.
	if err := h.fast.AppendMessage(r.Context(), msg); err != nil {
		h.storeError(w, err, "failed to store message")
		return
	}

	ev, err := models.NewEvent(models.TypeNewMessage, msg)
	if err != nil {
		h.storeError(w, err, "failed to encode message event")
		return
	}
	if !h.publish(w, r, bus.ChatTopic(msg.SessionID), ev) {
		return
	}

	h.mirror.Enqueue(ev)

	h.JSON(w, http.StatusOK, msg)
}

// GetMessages lists a session's recent messages, oldest first. When the fast
// path holds no history for the session (cold start after trim or restart),
// the durable record serves the catch-up read.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		h.Error(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), defaultMessageLimit)

	messages, err := h.fast.GetMessages(r.Context(), sessionID, limit)
	if err != nil {
		h.storeError(w, err, "failed to fetch messages")
		return
	}

	if len(messages) == 0 && h.durable != nil {
		if fallback, err := h.durable.RecentMessages(r.Context(), sessionID, limit); err != nil {
			h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("durable catch-up read failed")
		} else {
			messages = fallback
		}
	}

	if messages == nil {
		messages = []models.ChatMessage{}
	}

	h.JSON(w, http.StatusOK, MessagesResponse{Messages: messages})
}

// parseLimit parses a limit query parameter with a default and a hard cap.
func parseLimit(raw string, def int) int {
	limit := def
	if raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 1000 {
		limit = 1000
	}
	return limit
}
