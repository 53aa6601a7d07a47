package models

// SessionStatus is the current lifecycle state of a consultation session
// (waiting, active, completed, ...). Held in the fast path with a TTL.
type SessionStatus struct {
	SessionID string                 `json:"sessionId"`
	Status    string                 `json:"status"`
	UserID    string                 `json:"userId,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	UpdatedAt int64                  `json:"updatedAt"`
}

// PresenceRecord marks a user as reachable. Absence of a live record means
// "not reachable now", not "never existed".
type PresenceRecord struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
	Status    string `json:"status"`
	LastSeen  int64  `json:"lastSeen"`
}
