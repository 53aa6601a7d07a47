package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType discriminates the payload carried by an Event. The four domain
// types below travel over the bus and the push stream; Connected and Ping are
// control frames emitted only by the gateway.
type EventType string

const (
	TypeConnected     EventType = "connected"
	TypePing          EventType = "ping"
	TypeNewMessage    EventType = "new_message"
	TypeNotification  EventType = "new_notification"
	TypeSessionUpdate EventType = "session_update"
	TypeWebRTCSignal  EventType = "webrtc_signal"
)

// ErrUnknownEventType is returned when an event carries a type outside the
// known set. Callers treat it as a validation failure, never as a silent skip.
var ErrUnknownEventType = errors.New("unknown event type")

// Event is the envelope published on the bus and written to push streams.
// Data holds the serialized variant matching Type.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent wraps a payload in an Event envelope.
func NewEvent(t EventType, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", t, err)
	}
	return &Event{Type: t, Data: data}, nil
}

// Payload decodes the variant carried by the event. The switch is exhaustive
// over the domain types; control frames and unknown types are rejected.
func (e *Event) Payload() (interface{}, error) {
	switch e.Type {
	case TypeNewMessage:
		var msg ChatMessage
		if err := json.Unmarshal(e.Data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", e.Type, err)
		}
		return &msg, nil
	case TypeNotification:
		var n Notification
		if err := json.Unmarshal(e.Data, &n); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", e.Type, err)
		}
		return &n, nil
	case TypeSessionUpdate:
		var st SessionStatus
		if err := json.Unmarshal(e.Data, &st); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", e.Type, err)
		}
		return &st, nil
	case TypeWebRTCSignal:
		var env SignalEnvelope
		if err := json.Unmarshal(e.Data, &env); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", e.Type, err)
		}
		return &env, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
}
