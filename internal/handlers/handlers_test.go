package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/consultly/realtime/internal/models"
	"github.com/consultly/realtime/internal/store"
)

// fakeFastStore is an in-memory FastStore for handler tests.
type fakeFastStore struct {
	messages      map[string][]models.ChatMessage
	notifications map[string][]models.Notification
	statuses      map[string]*models.SessionStatus
	signals       map[string]*models.SignalEnvelope
	presence      map[string]bool
	failAll       bool
}

func newFakeFastStore() *fakeFastStore {
	return &fakeFastStore{
		messages:      make(map[string][]models.ChatMessage),
		notifications: make(map[string][]models.Notification),
		statuses:      make(map[string]*models.SessionStatus),
		signals:       make(map[string]*models.SignalEnvelope),
		presence:      make(map[string]bool),
	}
}

func (f *fakeFastStore) Close() error                 { return nil }
func (f *fakeFastStore) Ping(_ context.Context) error { return nil }

func (f *fakeFastStore) AppendMessage(_ context.Context, msg *models.ChatMessage) error {
	if f.failAll {
		return store.ErrUnavailable
	}
	msg.ID = ulid.Make().String()
	msg.Timestamp = time.Now().UnixMilli()
	f.messages[msg.SessionID] = append(f.messages[msg.SessionID], *msg)
	return nil
}

func (f *fakeFastStore) GetMessages(_ context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	if f.failAll {
		return nil, store.ErrUnavailable
	}
	msgs := f.messages[sessionID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeFastStore) AppendNotification(_ context.Context, n *models.Notification) error {
	if f.failAll {
		return store.ErrUnavailable
	}
	n.ID = ulid.Make().String()
	n.Timestamp = time.Now().UnixMilli()
	f.notifications[n.UserID] = append(f.notifications[n.UserID], *n)
	return nil
}

func (f *fakeFastStore) GetNotifications(_ context.Context, userID string, limit int, unreadOnly bool) ([]models.Notification, error) {
	if f.failAll {
		return nil, store.ErrUnavailable
	}
	var out []models.Notification
	for _, n := range f.notifications[userID] {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeFastStore) MarkNotificationRead(_ context.Context, userID, notificationID string) error {
	for i, n := range f.notifications[userID] {
		if n.ID == notificationID {
			f.notifications[userID][i].Read = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeFastStore) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	var updated int
	for i, n := range f.notifications[userID] {
		if !n.Read {
			f.notifications[userID][i].Read = true
			updated++
		}
	}
	return updated, nil
}

func (f *fakeFastStore) SetSessionStatus(_ context.Context, st *models.SessionStatus) error {
	if f.failAll {
		return store.ErrUnavailable
	}
	st.UpdatedAt = time.Now().UnixMilli()
	f.statuses[st.SessionID] = st
	return nil
}

func (f *fakeFastStore) GetSessionStatus(_ context.Context, sessionID string) (*models.SessionStatus, error) {
	st, ok := f.statuses[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return st, nil
}

func (f *fakeFastStore) TouchPresence(_ context.Context, userID, _ string) error {
	f.presence[userID] = true
	return nil
}

func (f *fakeFastStore) IsOnline(_ context.Context, userID string) (bool, error) {
	return f.presence[userID], nil
}

func (f *fakeFastStore) PutSignal(_ context.Context, env *models.SignalEnvelope) error {
	env.Timestamp = time.Now().UnixMilli()
	f.signals[env.SessionID+"/"+env.Type] = env
	return nil
}

func (f *fakeFastStore) GetSignal(_ context.Context, sessionID, signalType string) (*models.SignalEnvelope, error) {
	env, ok := f.signals[sessionID+"/"+signalType]
	if !ok {
		return nil, store.ErrNotFound
	}
	return env, nil
}

// fakeDurableStore records mirror-side state for fallback tests.
type fakeDurableStore struct {
	recent   []models.ChatMessage
	readRows int64
}

func (f *fakeDurableStore) Close()                       {}
func (f *fakeDurableStore) Ping(_ context.Context) error { return nil }

func (f *fakeDurableStore) InsertMessage(_ context.Context, _ *models.ChatMessage) error {
	return nil
}

func (f *fakeDurableStore) InsertNotification(_ context.Context, _ *models.Notification) error {
	return nil
}
func (f *fakeDurableStore) InsertSessionUpdate(_ context.Context, _ *models.SessionStatus) error {
	return nil
}

func (f *fakeDurableStore) RecentMessages(_ context.Context, _ string, _ int) ([]models.ChatMessage, error) {
	return f.recent, nil
}

func (f *fakeDurableStore) MarkNotificationRead(_ context.Context, _ string) (int64, error) {
	return f.readRows, nil
}

func (f *fakeDurableStore) MarkAllNotificationsRead(_ context.Context, _ string) (int64, error) {
	return f.readRows, nil
}

// recordingBus captures publishes; it is never subscribed to in these tests.
type recordingBus struct {
	published map[string][]*models.Event
	err       error
}

func newRecordingBus() *recordingBus {
	return &recordingBus{published: make(map[string][]*models.Event)}
}

func (b *recordingBus) Publish(_ context.Context, topic string, ev *models.Event) error {
	if b.err != nil {
		return b.err
	}
	b.published[topic] = append(b.published[topic], ev)
	return nil
}

func (b *recordingBus) Subscribe(_ string) (<-chan *models.Event, func(), error) {
	return nil, func() {}, nil
}

func (b *recordingBus) Connected() bool { return true }
func (b *recordingBus) Close()          {}

type recordingMirror struct {
	enqueued []*models.Event
}

func (m *recordingMirror) Enqueue(ev *models.Event) { m.enqueued = append(m.enqueued, ev) }

type fixture struct {
	h      *Handler
	fast   *fakeFastStore
	bus    *recordingBus
	mirror *recordingMirror
}

func newFixture(durable store.DurableStore) *fixture {
	fast := newFakeFastStore()
	b := newRecordingBus()
	m := &recordingMirror{}
	return &fixture{
		h:      NewHandler(fast, durable, b, m, zerolog.Nop()),
		fast:   fast,
		bus:    b,
		mirror: m,
	}
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestSendMessage(t *testing.T) {
	fx := newFixture(nil)

	rec := doJSON(t, fx.h.SendMessage, http.MethodPost, "/api/chat/messages",
		`{"sessionId":"s1","senderId":"u1","receiverId":"u2","content":"hello","type":"text"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var msg models.ChatMessage
	decode(t, rec, &msg)
	if msg.ID == "" || msg.Timestamp == 0 {
		t.Fatalf("response must echo assigned id and timestamp: %+v", msg)
	}
	if msg.Read {
		t.Fatal("new message must start unread")
	}

	if got := len(fx.bus.published["chat.s1"]); got != 1 {
		t.Fatalf("expected 1 publish on chat.s1, got %d", got)
	}
	if len(fx.mirror.enqueued) != 1 {
		t.Fatalf("expected 1 mirror enqueue, got %d", len(fx.mirror.enqueued))
	}
}

func TestSendMessageValidation(t *testing.T) {
	fx := newFixture(nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing session", `{"senderId":"u1","receiverId":"u2","content":"x","type":"text"}`, "sessionId is required"},
		{"missing sender", `{"sessionId":"s1","receiverId":"u2","content":"x","type":"text"}`, "senderId is required"},
		{"missing receiver", `{"sessionId":"s1","senderId":"u1","content":"x","type":"text"}`, "receiverId is required"},
		{"missing content", `{"sessionId":"s1","senderId":"u1","receiverId":"u2","type":"text"}`, "content is required"},
		{"missing type", `{"sessionId":"s1","senderId":"u1","receiverId":"u2","content":"x"}`, "type is required"},
		{"malformed body", `{not json`, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, fx.h.SendMessage, http.MethodPost, "/api/chat/messages", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			var resp map[string]string
			decode(t, rec, &resp)
			if resp["error"] != tt.want {
				t.Fatalf("got error %q, want %q", resp["error"], tt.want)
			}
		})
	}

	if len(fx.bus.published) != 0 || len(fx.mirror.enqueued) != 0 {
		t.Fatal("rejected requests must not publish or mirror")
	}
}

func TestSendMessageStoreUnavailable(t *testing.T) {
	fx := newFixture(nil)
	fx.fast.failAll = true

	rec := doJSON(t, fx.h.SendMessage, http.MethodPost, "/api/chat/messages",
		`{"sessionId":"s1","senderId":"u1","receiverId":"u2","content":"x","type":"text"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if len(fx.bus.published) != 0 {
		t.Fatal("failed store write must not publish")
	}
}

func TestSendMessageBrokerFailure(t *testing.T) {
	fx := newFixture(nil)
	fx.bus.err = context.DeadlineExceeded

	rec := doJSON(t, fx.h.SendMessage, http.MethodPost, "/api/chat/messages",
		`{"sessionId":"s1","senderId":"u1","receiverId":"u2","content":"x","type":"text"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on broker failure, got %d", rec.Code)
	}
	if len(fx.mirror.enqueued) != 0 {
		t.Fatal("undelivered event must not be mirrored")
	}
}

func TestGetMessagesOldestFirst(t *testing.T) {
	fx := newFixture(nil)

	for _, content := range []string{"one", "two", "three"} {
		rec := doJSON(t, fx.h.SendMessage, http.MethodPost, "/api/chat/messages",
			`{"sessionId":"s1","senderId":"u1","receiverId":"u2","content":"`+content+`","type":"text"}`)
		if rec.Code != http.StatusOK {
			t.Fatal(rec.Body.String())
		}
	}

	rec := doJSON(t, fx.h.GetMessages, http.MethodGet, "/api/chat/messages?sessionId=s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp MessagesResponse
	decode(t, rec, &resp)
	if len(resp.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(resp.Messages))
	}
	if resp.Messages[0].Content != "one" || resp.Messages[2].Content != "three" {
		t.Fatalf("not oldest-first: %+v", resp.Messages)
	}
}

func TestGetMessagesRequiresSession(t *testing.T) {
	fx := newFixture(nil)
	rec := doJSON(t, fx.h.GetMessages, http.MethodGet, "/api/chat/messages", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetMessagesColdStartFallback(t *testing.T) {
	durable := &fakeDurableStore{recent: []models.ChatMessage{
		{ID: "m1", SessionID: "s1", Content: "from durable"},
	}}
	fx := newFixture(durable)

	rec := doJSON(t, fx.h.GetMessages, http.MethodGet, "/api/chat/messages?sessionId=s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp MessagesResponse
	decode(t, rec, &resp)
	if len(resp.Messages) != 1 || resp.Messages[0].Content != "from durable" {
		t.Fatalf("expected durable fallback, got %+v", resp.Messages)
	}
}

func TestGetMessagesEmptyIsEmptyArray(t *testing.T) {
	fx := newFixture(nil)

	rec := doJSON(t, fx.h.GetMessages, http.MethodGet, "/api/chat/messages?sessionId=nothing", "")
	if body := strings.TrimSpace(rec.Body.String()); body != `{"messages":[]}` {
		t.Fatalf("expected empty array, got %s", body)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 50},
		{"10", 10},
		{"0", 50},
		{"-3", 50},
		{"garbage", 50},
		{"5000", 1000},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.raw, 50); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestSendNotification(t *testing.T) {
	fx := newFixture(nil)

	rec := doJSON(t, fx.h.SendNotification, http.MethodPost, "/api/notifications",
		`{"userId":"u1","type":"booking","title":"New booking","message":"You have a session","metadata":{"sessionId":"s1"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var n models.Notification
	decode(t, rec, &n)
	if n.ID == "" || n.Read {
		t.Fatalf("expected assigned id and unread flag: %+v", n)
	}
	if got := len(fx.bus.published["notify.u1"]); got != 1 {
		t.Fatalf("expected 1 publish on notify.u1, got %d", got)
	}
	if len(fx.mirror.enqueued) != 1 {
		t.Fatal("notification must be mirrored")
	}
}

func TestGetNotificationsUnreadOnly(t *testing.T) {
	fx := newFixture(nil)

	for i := 0; i < 3; i++ {
		doJSON(t, fx.h.SendNotification, http.MethodPost, "/api/notifications",
			`{"userId":"u1","type":"t","title":"x","message":"m"}`)
	}
	firstID := fx.fast.notifications["u1"][0].ID
	doJSON(t, fx.h.MarkNotificationRead, http.MethodPatch, "/api/notifications/read",
		`{"notificationId":"`+firstID+`","userId":"u1"}`)

	rec := doJSON(t, fx.h.GetNotifications, http.MethodGet, "/api/notifications?userId=u1&unreadOnly=true", "")
	var resp NotificationsResponse
	decode(t, rec, &resp)
	if len(resp.Notifications) != 2 {
		t.Fatalf("expected 2 unread, got %d", len(resp.Notifications))
	}
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	fx := newFixture(nil)

	rec := doJSON(t, fx.h.MarkNotificationRead, http.MethodPatch, "/api/notifications/read",
		`{"notificationId":"missing","userId":"u1"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMarkNotificationReadTrimmedButDurable(t *testing.T) {
	// The fast-path window trimmed the notification; the durable row remains.
	fx := newFixture(&fakeDurableStore{readRows: 1})

	rec := doJSON(t, fx.h.MarkNotificationRead, http.MethodPatch, "/api/notifications/read",
		`{"notificationId":"old","userId":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when durable row updated, got %d", rec.Code)
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	fx := newFixture(nil)

	for i := 0; i < 4; i++ {
		doJSON(t, fx.h.SendNotification, http.MethodPost, "/api/notifications",
			`{"userId":"u1","type":"t","title":"x","message":"m"}`)
	}

	rec := doJSON(t, fx.h.MarkAllNotificationsRead, http.MethodPost, "/api/notifications/read-all",
		`{"userId":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp MarkAllReadResponse
	decode(t, rec, &resp)
	if resp.UpdatedCount != 4 {
		t.Fatalf("expected updatedCount 4, got %d", resp.UpdatedCount)
	}
}

func TestUpdateSessionStatus(t *testing.T) {
	fx := newFixture(nil)

	rec := doJSON(t, fx.h.UpdateSessionStatus, http.MethodPost, "/api/sessions/status",
		`{"sessionId":"s1","status":"active","userId":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if got := len(fx.bus.published["status.s1"]); got != 1 {
		t.Fatalf("expected 1 publish on status.s1, got %d", got)
	}
	if len(fx.mirror.enqueued) != 1 {
		t.Fatal("status update must be mirrored")
	}
}

func TestGetSessionStatus(t *testing.T) {
	fx := newFixture(nil)

	doJSON(t, fx.h.UpdateSessionStatus, http.MethodPost, "/api/sessions/status",
		`{"sessionId":"s1","status":"ended"}`)

	r := chi.NewRouter()
	r.Get("/api/sessions/{sessionId}/status", fx.h.GetSessionStatus)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/s1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st models.SessionStatus
	decode(t, rec, &st)
	if st.Status != "ended" {
		t.Fatalf("unexpected status: %+v", st)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/unknown/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rec.Code)
	}
}

func TestSendSignalPublishesBothTopics(t *testing.T) {
	fx := newFixture(nil)

	rec := doJSON(t, fx.h.SendSignal, http.MethodPost, "/api/signal",
		`{"sessionId":"s1","type":"offer","from":"u1","to":"u2","data":{"sdp":"v=0"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if got := len(fx.bus.published["signal.s1"]); got != 1 {
		t.Fatalf("expected 1 publish on signal.s1, got %d", got)
	}
	if got := len(fx.bus.published["user.u2"]); got != 1 {
		t.Fatalf("expected recipient copy on user.u2, got %d", got)
	}
	if len(fx.mirror.enqueued) != 0 {
		t.Fatal("signals are ephemeral and must not be mirrored")
	}
}

func TestSendSignalValidation(t *testing.T) {
	fx := newFixture(nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing session", `{"type":"offer","from":"u1","to":"u2","data":{}}`},
		{"missing type", `{"sessionId":"s1","from":"u1","to":"u2","data":{}}`},
		{"missing from", `{"sessionId":"s1","type":"offer","to":"u2","data":{}}`},
		{"missing to", `{"sessionId":"s1","type":"offer","from":"u1","data":{}}`},
		{"missing data", `{"sessionId":"s1","type":"offer","from":"u1","to":"u2"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, fx.h.SendSignal, http.MethodPost, "/api/signal", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestGetSignal(t *testing.T) {
	fx := newFixture(nil)

	doJSON(t, fx.h.SendSignal, http.MethodPost, "/api/signal",
		`{"sessionId":"s1","type":"offer","from":"u1","to":"u2","data":{"sdp":"first"}}`)
	doJSON(t, fx.h.SendSignal, http.MethodPost, "/api/signal",
		`{"sessionId":"s1","type":"offer","from":"u1","to":"u2","data":{"sdp":"second"}}`)

	rec := doJSON(t, fx.h.GetSignal, http.MethodGet, "/api/signal?sessionId=s1&type=offer", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var env models.SignalEnvelope
	decode(t, rec, &env)
	if !strings.Contains(string(env.Data), "second") {
		t.Fatalf("expected last writer to win, got %s", env.Data)
	}

	rec = doJSON(t, fx.h.GetSignal, http.MethodGet, "/api/signal?sessionId=s1&type=answer", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for absent envelope, got %d", rec.Code)
	}
}

func TestGetPresence(t *testing.T) {
	fx := newFixture(nil)
	fx.fast.presence["u1"] = true

	r := chi.NewRouter()
	r.Get("/api/presence/{userId}", fx.h.GetPresence)

	for _, tt := range []struct {
		userID string
		online bool
	}{
		{"u1", true},
		{"u2", false},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/presence/"+tt.userID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp PresenceResponse
		decode(t, rec, &resp)
		if resp.UserID != tt.userID || resp.Online != tt.online {
			t.Fatalf("unexpected presence: %+v", resp)
		}
	}
}

func TestHealthDegradedWithoutDurable(t *testing.T) {
	fx := newFixture(nil)

	rec := doJSON(t, fx.h.Health, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp HealthResponse
	decode(t, rec, &resp)
	if resp.Status != "degraded" {
		t.Fatalf("expected degraded, got %q", resp.Status)
	}
	if resp.Checks["postgres"].Status != "fail" {
		t.Fatalf("expected postgres check to fail: %+v", resp.Checks)
	}
}

func TestHealthHealthy(t *testing.T) {
	fx := newFixture(&fakeDurableStore{})

	rec := doJSON(t, fx.h.Health, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp HealthResponse
	decode(t, rec, &resp)
	if resp.Status != "healthy" {
		t.Fatalf("expected healthy, got %+v", resp)
	}
}
