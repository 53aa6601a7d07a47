package bus

import "strings"

// Topic layout, one subject per channel key:
//
//	chat.{sessionId}    chat messages for one consultation session
//	notify.{userId}     notifications for one user
//	user.{userId}       cross-session events addressed to one user
//	signal.{sessionId}  WebRTC handshake envelopes for one session
//	status.{sessionId}  session status updates
//	status.*            every status update (monitoring/admin consumers)

// SessionUpdates matches every session's status topic.
const SessionUpdates = "status.*"

// ChatTopic returns the topic for a session's chat messages.
func ChatTopic(sessionID string) string {
	return "chat." + token(sessionID)
}

// NotifyTopic returns the topic for a user's notifications.
func NotifyTopic(userID string) string {
	return "notify." + token(userID)
}

// UserTopic returns the per-user topic for cross-session events.
func UserTopic(userID string) string {
	return "user." + token(userID)
}

// SignalTopic returns the topic for a session's signaling envelopes.
func SignalTopic(sessionID string) string {
	return "signal." + token(sessionID)
}

// StatusTopic returns the topic for a session's status updates.
func StatusTopic(sessionID string) string {
	return "status." + token(sessionID)
}

// token makes an external id safe for use as a single subject token.
// NATS reserves '.', '*' and '>' for subject structure, and spaces are not
// allowed at all.
func token(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, id)
}
