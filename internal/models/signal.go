package models

import "encoding/json"

// SignalEnvelope is an opaque WebRTC handshake payload (offer, answer or ICE
// candidate) relayed between the two parties of a session. Stored under a
// short TTL and overwritten by a newer envelope of the same (session, type)
// pair: last writer wins, envelopes are never queued.
type SignalEnvelope struct {
	SessionID string          `json:"sessionId"`
	Type      string          `json:"type"` // "offer", "answer", "ice-candidate"
	From      string          `json:"from"`
	To        string          `json:"to"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}
