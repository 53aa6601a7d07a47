package store

import (
	"context"
	"errors"

	"github.com/consultly/realtime/internal/models"
)

// ErrUnavailable indicates the fast-path store could not be reached. The
// event was not stored and not delivered; producers surface this as a 500.
var ErrUnavailable = errors.New("fast-path store unavailable")

// ErrNotFound indicates an unknown id or an entry whose TTL has elapsed.
var ErrNotFound = errors.New("not found")

// FastStore is the fast-path surface: bounded channel history, presence
// records and the signaling relay. Implemented by RedisStore.
type FastStore interface {
	Close() error
	Ping(ctx context.Context) error

	// Channel history
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	GetMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
	AppendNotification(ctx context.Context, n *models.Notification) error
	GetNotifications(ctx context.Context, userID string, limit int, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)

	// Session status
	SetSessionStatus(ctx context.Context, st *models.SessionStatus) error
	GetSessionStatus(ctx context.Context, sessionID string) (*models.SessionStatus, error)

	// Presence
	TouchPresence(ctx context.Context, userID, sessionID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)

	// Signaling relay
	PutSignal(ctx context.Context, env *models.SignalEnvelope) error
	GetSignal(ctx context.Context, sessionID, signalType string) (*models.SignalEnvelope, error)
}

// DurableStore is the long-term record behind the fast path. Writes go
// through the mirror; reads serve cold-start catch-up. Implemented by
// PostgresStore.
type DurableStore interface {
	Close()
	Ping(ctx context.Context) error

	InsertMessage(ctx context.Context, msg *models.ChatMessage) error
	InsertNotification(ctx context.Context, n *models.Notification) error
	InsertSessionUpdate(ctx context.Context, st *models.SessionStatus) error

	RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
	MarkNotificationRead(ctx context.Context, notificationID string) (int64, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
}
