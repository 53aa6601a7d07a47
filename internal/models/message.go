package models

// ChatMessage is a single message within a consultation session.
type ChatMessage struct {
	ID         string `json:"id"`
	SessionID  string `json:"sessionId"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	Type       string `json:"type"` // "text", "image", ...
	Timestamp  int64  `json:"timestamp"`
	Read       bool   `json:"read"`
}
