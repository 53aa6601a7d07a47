// Package bus is the publish/subscribe fabric between event producers and
// the fan-out gateway. It carries no history: backlog is served by the
// channel store, the bus only moves events published after a subscription
// began.
package bus

import (
	"context"

	"github.com/consultly/realtime/internal/models"
)

// Bus moves events between producers and subscribers on named topics.
// Delivery is at-least-once, ordered per topic relative to a single
// publisher. Slow subscribers drop events rather than stall the bus.
type Bus interface {
	// Publish sends an event to a topic.
	Publish(ctx context.Context, topic string, ev *models.Event) error

	// Subscribe returns a channel of events published to the topic after the
	// call, plus a cancel function that tears the subscription down. Cancel
	// must be called exactly once; the channel is never closed.
	Subscribe(topic string) (<-chan *models.Event, func(), error)

	// Connected reports whether the broker connection is currently up.
	Connected() bool

	// Close drains and closes the broker connection.
	Close()
}
