package mirror

import (
	"context"

	"github.com/consultly/realtime/internal/models"
)

// Discard is a Persister that drops everything. Used in development when no
// durable store is configured.
type Discard struct{}

func (Discard) InsertMessage(context.Context, *models.ChatMessage) error { return nil }

func (Discard) InsertNotification(context.Context, *models.Notification) error { return nil }

func (Discard) InsertSessionUpdate(context.Context, *models.SessionStatus) error { return nil }
