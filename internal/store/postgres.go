package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consultly/realtime/internal/models"
)

// PostgresStore holds the durable copy of delivered events. Writes arrive
// through the mirror after the fast path has already answered the producer,
// so every method here is best-effort from the producer's point of view.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InsertMessage persists a chat message.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg *models.ChatMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, session_id, sender_id, receiver_id, content, type, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, msg.ID, msg.SessionID, msg.SenderID, msg.ReceiverID, msg.Content, msg.Type, msg.Read, msg.Timestamp)
	return err
}

// InsertNotification persists a notification.
func (s *PostgresStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, metadata, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, n.ID, n.UserID, n.Type, n.Title, n.Message, n.Metadata, n.Read, n.Timestamp)
	return err
}

// InsertSessionUpdate appends a session status change to the status history.
func (s *PostgresStore) InsertSessionUpdate(ctx context.Context, st *models.SessionStatus) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_updates (session_id, status, user_id, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, st.SessionID, st.Status, nullable(st.UserID), st.Metadata, st.UpdatedAt)
	return err
}

// RecentMessages retrieves the most recent messages for a session from the
// durable record, oldest first. Used for cold-start catch-up when the fast
// path holds no history.
func (s *PostgresStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, sender_id, receiver_id, content, type, read, created_at
		FROM (
			SELECT id, session_id, sender_id, receiver_id, content, type, read, created_at
			FROM messages
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Content,
			&msg.Type,
			&msg.Read,
			&msg.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// MarkNotificationRead updates the durable read flag. Returns the number of
// rows touched.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE WHERE id = $1 AND read = FALSE
	`, notificationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkAllNotificationsRead updates the durable read flag for every unread
// notification of a user.
func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE
	`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
