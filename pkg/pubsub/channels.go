package pubsub

import (
	"fmt"
	"strings"
)

// Channel naming for session lifecycle events.
const (
	ChannelSessionEvents = "support:session:%s:events"
	PatternSessionEvents = "support:session:*:events"

	// DefaultSessionTopic is the Kafka topic that carries every session channel.
	DefaultSessionTopic = "support-session-events"
)

// Session lifecycle event types.
const (
	EventSessionStarted   = "session.started"
	EventSessionActivated = "session.activated"
	EventMessageSent      = "message.sent"
	EventSessionEnded     = "session.ended"
)

// SessionChannel returns the channel name for a session's lifecycle events.
func SessionChannel(sessionID string) string {
	return fmt.Sprintf(ChannelSessionEvents, sessionID)
}

// SessionIDFromChannel extracts the session id from a session channel name.
func SessionIDFromChannel(channel string) (string, error) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[0] != "support" || parts[1] != "session" || parts[3] != "events" || parts[2] == "" {
		return "", fmt.Errorf("invalid channel format: %s", channel)
	}
	return parts[2], nil
}

// SessionStartedPayload is published once a session row exists.
type SessionStartedPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// SessionActivatedPayload is published when a WAITING session becomes ACTIVE.
type SessionActivatedPayload struct {
	SessionID string `json:"session_id"`
}

// MessageSentPayload is published after a message is persisted.
type MessageSentPayload struct {
	SessionID     string `json:"session_id"`
	MessageID     string `json:"message_id"`
	IsFromSupport bool   `json:"is_from_support"`
}

// SessionEndedPayload is published after the transcript is stored.
type SessionEndedPayload struct {
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
}
