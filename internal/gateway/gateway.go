// Package gateway fans bus events out to long-lived push streams. Each
// connected client holds one stream; the gateway subscribes it to the topics
// its identity and declared sessions entitle it to, translates bus events
// into wire frames, and emits periodic keep-alives.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/consultly/realtime/internal/api/middleware"
	"github.com/consultly/realtime/internal/bus"
	"github.com/consultly/realtime/internal/metrics"
	"github.com/consultly/realtime/internal/models"
)

// PresenceToucher refreshes a user's liveness record. Satisfied by the fast
// store.
type PresenceToucher interface {
	TouchPresence(ctx context.Context, userID, sessionID string) error
}

// Gateway serves the push stream endpoint.
type Gateway struct {
	bus       bus.Bus
	presence  PresenceToucher
	logger    zerolog.Logger
	keepAlive time.Duration
}

// New creates a gateway. keepAlive is the interval between ping frames.
func New(b bus.Bus, presence PresenceToucher, logger zerolog.Logger, keepAlive time.Duration) *Gateway {
	return &Gateway{bus: b, presence: presence, logger: logger, keepAlive: keepAlive}
}

// controlFrame is the shape of connected and ping frames.
type controlFrame struct {
	Type      models.EventType `json:"type"`
	Timestamp int64            `json:"timestamp"`
}

// Stream opens a push stream for the caller. Topics are derived from the
// identity supplied by the edge plus the session ids declared in the
// `sessions` query parameter. The stream stays open until the client
// disconnects or the server shuts down; all subscriptions are torn down on
// the way out.
func (g *Gateway) Stream(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"caller identity required"}`, http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	sessions := splitSessions(r.URL.Query().Get("sessions"))
	topics := g.entitledTopics(ident, sessions)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before writing any frame so no event published after the
	// connected frame can be missed.
	out := make(chan *models.Event, 64)
	for _, topic := range topics {
		ch, unsub, err := g.bus.Subscribe(topic)
		if err != nil {
			g.logger.Error().Err(err).Str("topic", topic).Msg("stream subscription failed")
			http.Error(w, `{"error":"stream setup failed"}`, http.StatusInternalServerError)
			return
		}
		defer unsub()
		go forward(ctx, ch, out)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	connID := uuid.New().String()
	log := g.logger.With().
		Str("conn_id", connID).
		Str("user_id", ident.UserID).
		Logger()
	log.Info().Strs("topics", topics).Msg("stream opened")

	metrics.StreamConnections.Inc()
	defer metrics.StreamConnections.Dec()

	if err := g.writeControl(w, models.TypeConnected); err != nil {
		return
	}
	flusher.Flush()

	g.touch(ctx, ident.UserID, sessions)

	ticker := time.NewTicker(g.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stream closed")
			return

		case ev := <-out:
			if err := writeFrame(w, ev); err != nil {
				log.Info().Err(err).Msg("stream write failed, closing")
				return
			}
			flusher.Flush()
			metrics.FramesWritten.WithLabelValues(string(ev.Type)).Inc()

		case <-ticker.C:
			if err := g.writeControl(w, models.TypePing); err != nil {
				log.Info().Msg("keep-alive failed, closing dead stream")
				return
			}
			flusher.Flush()
			g.touch(ctx, ident.UserID, sessions)
		}
	}
}

// entitledTopics derives the topic set for a connection: the caller's own
// notification and user topics, chat/signal/status topics for each declared
// session, and the global status wildcard for admin identities.
func (g *Gateway) entitledTopics(ident *middleware.Identity, sessions []string) []string {
	topics := []string{
		bus.NotifyTopic(ident.UserID),
		bus.UserTopic(ident.UserID),
	}
	for _, sid := range sessions {
		topics = append(topics,
			bus.ChatTopic(sid),
			bus.SignalTopic(sid),
			bus.StatusTopic(sid),
		)
	}
	if ident.Role == "admin" {
		topics = append(topics, bus.SessionUpdates)
	}
	return topics
}

func (g *Gateway) touch(ctx context.Context, userID string, sessions []string) {
	sessionID := ""
	if len(sessions) > 0 {
		sessionID = sessions[0]
	}
	if err := g.presence.TouchPresence(ctx, userID, sessionID); err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("presence touch failed")
	}
}

func (g *Gateway) writeControl(w http.ResponseWriter, t models.EventType) error {
	frame := controlFrame{Type: t, Timestamp: time.Now().UnixMilli()}
	data, err := json.Marshal(&frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	metrics.FramesWritten.WithLabelValues(string(t)).Inc()
	return nil
}

func writeFrame(w http.ResponseWriter, ev *models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// forward moves events from a subscription channel onto the connection's
// merged channel until the connection context is cancelled.
func forward(ctx context.Context, in <-chan *models.Event, out chan<- *models.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-in:
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func splitSessions(raw string) []string {
	if raw == "" {
		return nil
	}
	var sessions []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			sessions = append(sessions, s)
		}
	}
	return sessions
}
