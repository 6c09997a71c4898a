package domain

import (
	"encoding/json"
	"time"
)

// Events sent by clients.
const (
	EventChatStart   = "chat:start"
	EventChatJoin    = "chat:join"
	EventMessageSend = "message:send"
	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"
	EventChatEnd     = "chat:end"
)

// Events sent by the relay.
const (
	EventChatStarted     = "chat:started"
	EventMessageReceive  = "message:receive"
	EventTypingIndicator = "typing:indicator"
	EventChatEnded       = "chat:ended"
	EventError           = "error"
)

// Error messages surfaced to the requester.
const (
	ErrMsgInvalidFormat   = "Invalid message format"
	ErrMsgUnknownEvent    = "Unknown event"
	ErrMsgCreateSession   = "Unable to create the session"
	ErrMsgSessionNotFound = "Session not found"
	ErrMsgJoinSession     = "Unable to join the session"
	ErrMsgSendMessage     = "Unable to send the message"
	ErrMsgEndSession      = "Unable to end the session"
	ErrMsgSessionEnded    = "Session has already ended"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode marshals data into an envelope frame for event.
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Client -> relay payloads

type StartRequest struct {
	UserID string `json:"userId"`
}

type JoinRequest struct {
	SessionID string `json:"sessionId"`
}

type SendRequest struct {
	SessionID     string `json:"sessionId"`
	Content       string `json:"content"`
	IsFromSupport bool   `json:"isFromSupport"`
}

type TypingRequest struct {
	SessionID     string `json:"sessionId"`
	IsFromSupport bool   `json:"isFromSupport"`
}

type EndRequest struct {
	SessionID string `json:"sessionId"`
}

// Relay -> client payloads

type StartedPayload struct {
	SessionID string `json:"sessionId"`
}

// MessageView is a message as broadcast to room members.
type MessageView struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	SentAt        time.Time `json:"sentAt"`
	IsFromSupport bool      `json:"isFromSupport"`
}

// MarshalJSON writes sentAt with TranscriptTimeLayout so the wire and the
// transcript carry the same timestamp text.
func (m MessageView) MarshalJSON() ([]byte, error) {
	type view MessageView
	return json.Marshal(struct {
		view
		SentAt string `json:"sentAt"`
	}{view(m), m.SentAt.UTC().Format(TranscriptTimeLayout)})
}

// View returns the broadcast form of m.
func (m *ChatMessage) View() MessageView {
	return MessageView{ID: m.ID, Content: m.Content, SentAt: m.SentAt, IsFromSupport: m.IsFromSupport}
}

type MessageReceivePayload struct {
	Message MessageView `json:"message"`
}

type TypingIndicatorPayload struct {
	IsTyping      bool `json:"isTyping"`
	IsFromSupport bool `json:"isFromSupport"`
}

type EndedPayload struct {
	SessionID string `json:"sessionId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
