package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/consultly/realtime/internal/models"
)

// Limits holds the per-channel caps and TTLs for the fast path.
type Limits struct {
	ChatHistoryCap  int64
	NotificationCap int64
	PresenceTTL     time.Duration
	SignalTTL       time.Duration
	StatusTTL       time.Duration
}

// DefaultLimits returns the production caps and TTLs.
func DefaultLimits() Limits {
	return Limits{
		ChatHistoryCap:  1000,
		NotificationCap: 100,
		PresenceTTL:     300 * time.Second,
		SignalTTL:       5 * time.Minute,
		StatusTTL:       24 * time.Hour,
	}
}

// RedisStore handles Redis operations for channel history, presence, session
// status and the signaling relay.
type RedisStore struct {
	client *redis.Client
	limits Limits
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string, limits Limits) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, limits: limits}, nil
}

// Client exposes the underlying client for middleware that shares the
// connection (rate limiting).
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// unavailable tags a transport failure so handlers can map it to a 500.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// chatMessagesKey returns the key for a session's message list.
func chatMessagesKey(sessionID string) string {
	return fmt.Sprintf("chat:%s:messages", sessionID)
}

// notificationsKey returns the key for a user's notification list.
func notificationsKey(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

// presenceKey returns the key for a user's presence record.
func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

// sessionStatusKey returns the key for a session's status record.
func sessionStatusKey(sessionID string) string {
	return fmt.Sprintf("session_status:%s", sessionID)
}

// signalKey returns the key for a (session, signal-type) relay slot.
func signalKey(sessionID, signalType string) string {
	return fmt.Sprintf("signal:%s:%s", sessionID, signalType)
}

// AppendMessage stores a message at the head of its session's history and
// trims the tail to the configured cap. Push and trim run in one pipeline so
// a concurrent reader never observes a partially trimmed list.
func (s *RedisStore) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := chatMessagesKey(msg.SessionID)

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, 0, s.limits.ChatHistoryCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}

	return nil
}

// GetMessages retrieves up to limit of the most recent messages for a
// session, oldest first.
func (s *RedisStore) GetMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	key := chatMessagesKey(sessionID)

	// Head of the list is the newest message.
	results, err := s.client.LRange(ctx, key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	messages := make([]models.ChatMessage, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(results[i]), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// AppendNotification stores a notification at the head of the user's list
// and trims to the notification cap.
func (s *RedisStore) AppendNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = ulid.Make().String()
	}
	if n.Timestamp == 0 {
		n.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	key := notificationsKey(n.UserID)

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, 0, s.limits.NotificationCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}

	return nil
}

// GetNotifications retrieves up to limit of the most recent notifications
// for a user, oldest first. With unreadOnly set, the whole window is scanned
// before the limit is applied, so read entries near the head never crowd out
// older unread ones.
func (s *RedisStore) GetNotifications(ctx context.Context, userID string, limit int, unreadOnly bool) ([]models.Notification, error) {
	key := notificationsKey(userID)

	stop := int64(limit) - 1
	if unreadOnly {
		stop = -1
	}

	results, err := s.client.LRange(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	notifications := make([]models.Notification, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		var n models.Notification
		if err := json.Unmarshal([]byte(results[i]), &n); err != nil {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		notifications = append(notifications, n)
	}

	if len(notifications) > limit {
		notifications = notifications[len(notifications)-limit:]
	}

	return notifications, nil
}

// markReadScript finds a notification by id and flips its read flag in one
// server-side step. A client-side LRange-then-LSet pair would race with a
// concurrent LPush: the push shifts every index, so the LSet lands on the
// wrong element and overwrites it. Returns 1 updated, 0 already read, -1 not
// found.
var markReadScript = redis.NewScript(`
local items = redis.call('LRANGE', KEYS[1], 0, -1)
for i, raw in ipairs(items) do
	local n = cjson.decode(raw)
	if n.id == ARGV[1] then
		if n.read then
			return 0
		end
		n.read = true
		redis.call('LSET', KEYS[1], i - 1, cjson.encode(n))
		return 1
	end
end
return -1
`)

// markAllReadScript flips the read flag on every unread notification in the
// list and returns the count, in one server-side step for the same reason as
// markReadScript.
var markAllReadScript = redis.NewScript(`
local items = redis.call('LRANGE', KEYS[1], 0, -1)
local updated = 0
for i, raw in ipairs(items) do
	local n = cjson.decode(raw)
	if not n.read then
		n.read = true
		redis.call('LSET', KEYS[1], i - 1, cjson.encode(n))
		updated = updated + 1
	end
end
return updated
`)

// MarkNotificationRead flips the read flag on one notification in place.
// Returns ErrNotFound if the id is absent from the fast-path window.
func (s *RedisStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	res, err := markReadScript.Run(ctx, s.client, []string{notificationsKey(userID)}, notificationID).Int()
	if err != nil {
		return unavailable(err)
	}
	if res < 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead flips the read flag on every unread notification
// for a user and returns how many were updated.
func (s *RedisStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	updated, err := markAllReadScript.Run(ctx, s.client, []string{notificationsKey(userID)}).Int()
	if err != nil {
		return 0, unavailable(err)
	}
	return updated, nil
}

// SetSessionStatus stores the session status record with the status TTL.
func (s *RedisStore) SetSessionStatus(ctx context.Context, st *models.SessionStatus) error {
	if st.UpdatedAt == 0 {
		st.UpdatedAt = time.Now().UnixMilli()
	}

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, sessionStatusKey(st.SessionID), string(data), s.limits.StatusTTL).Err(); err != nil {
		return unavailable(err)
	}

	return nil
}

// GetSessionStatus retrieves a session's status record.
func (s *RedisStore) GetSessionStatus(ctx context.Context, sessionID string) (*models.SessionStatus, error) {
	data, err := s.client.Get(ctx, sessionStatusKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}

	var st models.SessionStatus
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, err
	}

	return &st, nil
}

// TouchPresence sets or refreshes a user's presence record with the presence
// TTL. Concurrent touches are last-write-wins on lastSeen.
func (s *RedisStore) TouchPresence(ctx context.Context, userID, sessionID string) error {
	record := models.PresenceRecord{
		UserID:    userID,
		SessionID: sessionID,
		Status:    "online",
		LastSeen:  time.Now().UnixMilli(),
	}

	data, err := json.Marshal(&record)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, presenceKey(userID), string(data), s.limits.PresenceTTL).Err(); err != nil {
		return unavailable(err)
	}

	return nil
}

// IsOnline reports whether an unexpired presence record exists for the user.
func (s *RedisStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	exists, err := s.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return exists > 0, nil
}

// PutSignal stores a signaling envelope under its (session, type) key with a
// fresh TTL, overwriting any previous envelope for the same key.
func (s *RedisStore) PutSignal(ctx context.Context, env *models.SignalEnvelope) error {
	if env.Timestamp == 0 {
		env.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, signalKey(env.SessionID, env.Type), string(data), s.limits.SignalTTL).Err(); err != nil {
		return unavailable(err)
	}

	return nil
}

// GetSignal retrieves the current envelope for a (session, type) key. Reads
// do not consume; the entry lives until TTL expiry or overwrite.
func (s *RedisStore) GetSignal(ctx context.Context, sessionID, signalType string) (*models.SignalEnvelope, error) {
	data, err := s.client.Get(ctx, signalKey(sessionID, signalType)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}

	var env models.SignalEnvelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, err
	}

	return &env, nil
}
