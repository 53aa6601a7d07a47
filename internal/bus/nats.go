package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/consultly/realtime/internal/metrics"
	"github.com/consultly/realtime/internal/models"
)

// subscriberBuffer bounds each subscription's channel. When a consumer falls
// this far behind, further events for it are dropped (at-least-once, not
// lossless).
const subscriberBuffer = 64

// NATSBus implements Bus over a core NATS connection. The connection is
// process-wide and safe for concurrent use.
type NATSBus struct {
	nc     *nats.Conn
	logger zerolog.Logger
}

// Connect establishes the broker connection. Reconnects are unlimited; the
// client buffers publishes across short broker outages.
func Connect(natsURL string, logger zerolog.Logger) (*NATSBus, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("realtime-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	return &NATSBus{nc: nc, logger: logger}, nil
}

// Publish sends an event to a topic. Publishers serialize their own
// publishes, so per-topic order follows call order.
func (b *NATSBus) Publish(ctx context.Context, topic string, ev *models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if err := b.nc.Publish(topic, data); err != nil {
		return err
	}

	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// Subscribe delivers events for a topic onto a bounded channel. The NATS
// callback never blocks: when the subscriber's buffer is full the event is
// dropped and counted.
func (b *NATSBus) Subscribe(topic string) (<-chan *models.Event, func(), error) {
	ch := make(chan *models.Event, subscriberBuffer)

	sub, err := b.nc.Subscribe(topic, func(msg *nats.Msg) {
		var ev models.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			b.logger.Warn().Err(err).Str("topic", msg.Subject).Msg("dropping malformed bus event")
			return
		}

		select {
		case ch <- &ev:
		default:
			metrics.SubscriberDrops.Inc()
			b.logger.Warn().Str("topic", msg.Subject).Msg("subscriber buffer full, dropping event")
		}
	})
	if err != nil {
		return nil, nil, err
	}

	cancel := func() {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Warn().Err(err).Str("topic", topic).Msg("unsubscribe failed")
		}
	}

	return ch, cancel, nil
}

// Connected reports whether the broker connection is currently up.
func (b *NATSBus) Connected() bool {
	return b.nc.IsConnected()
}

// Close drains in-flight messages and closes the connection.
func (b *NATSBus) Close() {
	if err := b.nc.Drain(); err != nil {
		b.logger.Warn().Err(err).Msg("nats drain failed")
		b.nc.Close()
	}
}
