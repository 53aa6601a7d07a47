package models

// Notification is a user-scoped alert (booking confirmed, payment received,
// new message while away, ...).
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Read      bool                   `json:"read"`
	Timestamp int64                  `json:"timestamp"`
}
