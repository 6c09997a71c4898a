// Package agent is the participant side of the relay: one websocket per
// process, imperative request methods, and a read loop that feeds relay
// events into a chatstore.Store.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourcaryourway/support-chat/internal/chatstore"
	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/pkg/log"
)

var ErrNotConnected = errors.New("agent: not connected")

const writeWait = 10 * time.Second

type Agent struct {
	url     string
	dialer  *websocket.Dialer
	header  http.Header
	store   *chatstore.Store
	onError func(message string)

	mu      sync.Mutex // guards conn and loop
	writeMu sync.Mutex // one writer at a time on conn
	conn    *websocket.Conn
	loop    *readLoop
}

// readLoop tracks the goroutine reading one connection.
type readLoop struct {
	done     chan struct{}
	handling atomic.Bool // set while an event is applied to the store
}

type Option func(*Agent)

// WithErrorHandler sets the callback for relay error events. It runs on
// the read loop.
func WithErrorHandler(fn func(message string)) Option {
	return func(a *Agent) { a.onError = fn }
}

// WithHeader sets headers sent with the upgrade request, e.g. Origin.
func WithHeader(h http.Header) Option {
	return func(a *Agent) { a.header = h }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(a *Agent) { a.dialer = d }
}

// New creates a disconnected agent for the relay at url
// (e.g. ws://localhost:3001/chat/ws). A nil store gets a fresh one.
func New(url string, store *chatstore.Store, opts ...Option) *Agent {
	if store == nil {
		store = chatstore.New()
	}
	a := &Agent{
		url:    url,
		dialer: websocket.DefaultDialer,
		store:  store,
	}
	a.onError = func(message string) {
		l := log.L()
		l.Warn().Str("url", a.url).Msg("relay error: " + message)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Store() *chatstore.Store {
	return a.store
}

// Connected reports whether the agent holds an open connection.
func (a *Agent) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}

// Connect opens the connection. Calling it while connected is a no-op.
func (a *Agent) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.conn != nil {
		a.mu.Unlock()
		return nil
	}

	conn, resp, err := a.dialer.DialContext(ctx, a.url, a.header)
	if err != nil {
		a.mu.Unlock()
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", a.url, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", a.url, err)
	}

	loop := &readLoop{done: make(chan struct{})}
	a.conn = conn
	a.loop = loop
	a.mu.Unlock()

	a.store.SetConnected(true)
	go a.read(conn, loop)
	return nil
}

// Disconnect closes the connection and waits for the read loop to stop.
// Called from a store listener or error handler while an event is being
// applied, it returns without waiting; the loop exits once the event is
// done. Calling it while disconnected is a no-op.
func (a *Agent) Disconnect() error {
	a.mu.Lock()
	conn, loop := a.conn, a.loop
	a.conn, a.loop = nil, nil
	a.mu.Unlock()

	if conn == nil {
		return nil
	}

	a.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	a.writeMu.Unlock()

	err := conn.Close()
	if !loop.handling.Load() {
		<-loop.done
	}
	return err
}

// StartChat connects if needed and asks the relay for a new session. The
// session id arrives later as chat:started.
func (a *Agent) StartChat(ctx context.Context, userID string) error {
	if err := a.Connect(ctx); err != nil {
		return err
	}
	return a.emit(domain.EventChatStart, domain.StartRequest{UserID: userID})
}

// JoinChat connects if needed and joins the room of sessionID.
func (a *Agent) JoinChat(ctx context.Context, sessionID string) error {
	if err := a.Connect(ctx); err != nil {
		return err
	}
	return a.emit(domain.EventChatJoin, domain.JoinRequest{SessionID: sessionID})
}

// SendMessage emits a message. The local state only changes when the
// relay broadcasts it back.
func (a *Agent) SendMessage(sessionID, content string, isFromSupport bool) error {
	return a.emit(domain.EventMessageSend, domain.SendRequest{
		SessionID:     sessionID,
		Content:       content,
		IsFromSupport: isFromSupport,
	})
}

func (a *Agent) StartTyping(sessionID string, isFromSupport bool) error {
	return a.emit(domain.EventTypingStart, domain.TypingRequest{SessionID: sessionID, IsFromSupport: isFromSupport})
}

func (a *Agent) StopTyping(sessionID string, isFromSupport bool) error {
	return a.emit(domain.EventTypingStop, domain.TypingRequest{SessionID: sessionID, IsFromSupport: isFromSupport})
}

func (a *Agent) EndChat(sessionID string) error {
	return a.emit(domain.EventChatEnd, domain.EndRequest{SessionID: sessionID})
}

func (a *Agent) emit(event string, data interface{}) error {
	frame, err := domain.Encode(event, data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (a *Agent) read(conn *websocket.Conn, loop *readLoop) {
	defer func() {
		a.mu.Lock()
		if a.conn == conn {
			a.conn, a.loop = nil, nil
		}
		reconnected := a.conn != nil
		a.mu.Unlock()

		conn.Close()
		if !reconnected {
			a.store.SetConnected(false)
		}
		close(loop.done)
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l := log.L()
				l.Debug().Err(err).Msg("relay connection closed")
			}
			return
		}
		loop.handling.Store(true)
		a.handleEvent(frame)
		loop.handling.Store(false)
	}
}

// handleEvent applies one relay event to the store.
func (a *Agent) handleEvent(frame []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("dropping malformed relay frame")
		return
	}

	switch env.Event {
	case domain.EventChatStarted:
		var p domain.StartedPayload
		if a.decode(env, &p) {
			a.store.SetSessionID(p.SessionID)
		}

	case domain.EventMessageReceive:
		var p domain.MessageReceivePayload
		if a.decode(env, &p) {
			a.store.AddMessage(p.Message)
		}

	case domain.EventTypingIndicator:
		var p domain.TypingIndicatorPayload
		if a.decode(env, &p) {
			a.store.SetTyping(p.IsTyping)
		}

	case domain.EventChatEnded:
		a.store.EndChat()

	case domain.EventError:
		var p domain.ErrorPayload
		if a.decode(env, &p) {
			a.onError(p.Message)
		}

	default:
		l := log.L()
		l.Debug().Str(log.FieldEvent, env.Event).Msg("ignoring relay event")
	}
}

func (a *Agent) decode(env domain.Envelope, v interface{}) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldEvent, env.Event).Msg("dropping malformed relay payload")
		return false
	}
	return true
}
