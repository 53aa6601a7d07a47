// Package mirror asynchronously copies fast-path events into the durable
// store. The fast path has already answered the producer by the time a write
// happens here, so failures are logged and dropped, never surfaced.
package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/consultly/realtime/internal/metrics"
	"github.com/consultly/realtime/internal/models"
)

// writeTimeout bounds each durable write so a stalled database cannot pin a
// worker forever.
const writeTimeout = 5 * time.Second

// Persister is the durable side of the mirror.
type Persister interface {
	InsertMessage(ctx context.Context, msg *models.ChatMessage) error
	InsertNotification(ctx context.Context, n *models.Notification) error
	InsertSessionUpdate(ctx context.Context, st *models.SessionStatus) error
}

// Mirror drains a bounded queue of events onto background workers that write
// to the durable store. Its lifecycle is process-scoped: it outlives any
// single connection and stops only at shutdown.
type Mirror struct {
	queue   chan *models.Event
	persist Persister
	logger  zerolog.Logger
	workers int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a mirror with the given queue size and worker count.
func New(persist Persister, logger zerolog.Logger, queueSize, workers int) *Mirror {
	return &Mirror{
		queue:   make(chan *models.Event, queueSize),
		persist: persist,
		logger:  logger,
		workers: workers,
	}
}

// Start launches the drain workers.
func (m *Mirror) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.drain(ctx)
	}
}

// Enqueue hands an event to the mirror. The handoff is a bounded,
// constant-time operation: when the queue is full the event is dropped and
// counted, and the caller is never blocked.
func (m *Mirror) Enqueue(ev *models.Event) {
	select {
	case m.queue <- ev:
	default:
		metrics.MirrorDropped.Inc()
		m.logger.Warn().Str("type", string(ev.Type)).Msg("mirror queue full, dropping event")
	}
}

// Close stops the workers. Events still queued are written best-effort
// before each worker exits; anything beyond that is dropped, which is
// acceptable at process shutdown.
func (m *Mirror) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Mirror) drain(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case ev := <-m.queue:
			m.write(ev)
		case <-ctx.Done():
			// Final best-effort drain of whatever is already queued.
			for {
				select {
				case ev := <-m.queue:
					m.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Mirror) write(ev *models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	payload, err := ev.Payload()
	if err != nil {
		m.logger.Warn().Err(err).Msg("mirror skipping undecodable event")
		return
	}

	switch p := payload.(type) {
	case *models.ChatMessage:
		err = m.persist.InsertMessage(ctx, p)
	case *models.Notification:
		err = m.persist.InsertNotification(ctx, p)
	case *models.SessionStatus:
		err = m.persist.InsertSessionUpdate(ctx, p)
	case *models.SignalEnvelope:
		// Handshake envelopes are ephemeral; nothing durable to write.
		return
	}

	if err != nil {
		metrics.MirrorErrors.Inc()
		m.logger.Error().Err(err).Str("type", string(ev.Type)).Msg("durable write failed, event dropped from mirror")
		return
	}

	metrics.MirrorPersisted.WithLabelValues(string(ev.Type)).Inc()
}
