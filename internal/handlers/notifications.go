package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/consultly/realtime/internal/bus"
	"github.com/consultly/realtime/internal/models"
	"github.com/consultly/realtime/internal/store"
)

const defaultNotificationLimit = 50

// SendNotificationRequest represents the send notification request body.
type SendNotificationRequest struct {
	UserID   string                 `json:"userId"`
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NotificationsResponse represents the list notifications response.
type NotificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

// MarkReadRequest represents the mark notification read request body.
type MarkReadRequest struct {
	NotificationID string `json:"notificationId"`
	UserID         string `json:"userId"`
}

// MarkAllReadRequest represents the mark-all-read request body.
type MarkAllReadRequest struct {
	UserID string `json:"userId"`
}

// MarkAllReadResponse reports how many notifications were updated.
type MarkAllReadResponse struct {
	UpdatedCount int `json:"updatedCount"`
}

// SendNotification appends a notification to the user's channel, publishes
// it and enqueues the durable mirror write.
func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req SendNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch {
	case req.UserID == "":
		h.Error(w, http.StatusBadRequest, "userId is required")
		return
	case req.Type == "":
		h.Error(w, http.StatusBadRequest, "type is required")
		return
	case req.Title == "":
		h.Error(w, http.StatusBadRequest, "title is required")
		return
	case req.Message == "":
		h.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	n := &models.Notification{
		UserID:   req.UserID,
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Metadata: req.Metadata,
	}

	if err := h.fast.AppendNotification(r.Context(), n); err != nil {
		h.storeError(w, err, "failed to store notification")
		return
	}

	ev, err := models.NewEvent(models.TypeNotification, n)
	if err != nil {
		h.storeError(w, err, "failed to encode notification event")
		return
	}
	if !h.publish(w, r, bus.NotifyTopic(n.UserID), ev) {
		return
	}

	h.mirror.Enqueue(ev)

	h.JSON(w, http.StatusOK, n)
}

// GetNotifications lists a user's recent notifications, oldest first.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		h.Error(w, http.StatusBadRequest, "userId is required")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), defaultNotificationLimit)
	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"

	notifications, err := h.fast.GetNotifications(r.Context(), userID, limit, unreadOnly)
	if err != nil {
		h.storeError(w, err, "failed to fetch notifications")
		return
	}

	if notifications == nil {
		notifications = []models.Notification{}
	}

	h.JSON(w, http.StatusOK, NotificationsResponse{Notifications: notifications})
}

// MarkNotificationRead flips the read flag on one notification. The fast
// path is updated synchronously; the durable flag follows best-effort.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch {
	case req.NotificationID == "":
		h.Error(w, http.StatusBadRequest, "notificationId is required")
		return
	case req.UserID == "":
		h.Error(w, http.StatusBadRequest, "userId is required")
		return
	}

	err := h.fast.MarkNotificationRead(r.Context(), req.UserID, req.NotificationID)
	fastFound := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.storeError(w, err, "failed to mark notification read")
		return
	}

	var durableRows int64
	if h.durable != nil {
		durableRows, err = h.durable.MarkNotificationRead(r.Context(), req.NotificationID)
		if err != nil {
			h.logger.Warn().Err(err).Str("notification_id", req.NotificationID).Msg("durable read-flag update failed")
		}
	}

	// The fast-path window may have trimmed the notification; the durable
	// record still counts.
	if !fastFound && durableRows == 0 {
		h.Error(w, http.StatusNotFound, "notification not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// MarkAllNotificationsRead flips the read flag on every unread notification
// for a user and reports the fast-path count.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var req MarkAllReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		h.Error(w, http.StatusBadRequest, "userId is required")
		return
	}

	updated, err := h.fast.MarkAllNotificationsRead(r.Context(), req.UserID)
	if err != nil {
		h.storeError(w, err, "failed to mark notifications read")
		return
	}

	if h.durable != nil {
		if _, err := h.durable.MarkAllNotificationsRead(r.Context(), req.UserID); err != nil {
			h.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("durable read-flag update failed")
		}
	}

	h.JSON(w, http.StatusOK, MarkAllReadResponse{UpdatedCount: updated})
}
