package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourcaryourway/support-chat/internal/chatstore"
	"github.com/yourcaryourway/support-chat/internal/domain"
)

// scriptedRelay answers chat:start with a fixed sequence of events and
// records every frame it receives.
type scriptedRelay struct {
	received chan domain.Envelope
	upgrades chan struct{}
}

func newScriptedRelay(t *testing.T) (*scriptedRelay, string) {
	t.Helper()
	r := &scriptedRelay{
		received: make(chan domain.Envelope, 32),
		upgrades: make(chan struct{}, 8),
	}
	srv := httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(srv.Close)
	return r, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (r *scriptedRelay) serve(w http.ResponseWriter, req *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	r.upgrades <- struct{}{}

	send := func(event string, data interface{}) {
		frame, _ := domain.Encode(event, data)
		conn.WriteMessage(websocket.TextMessage, frame)
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env domain.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			continue
		}
		r.received <- env

		if env.Event == domain.EventChatStart {
			msg := domain.MessageView{ID: "M1", Content: "hello", SentAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
			send(domain.EventChatStarted, domain.StartedPayload{SessionID: "S1"})
			send(domain.EventMessageReceive, domain.MessageReceivePayload{Message: msg})
			send(domain.EventMessageReceive, domain.MessageReceivePayload{Message: msg})
			send(domain.EventTypingIndicator, domain.TypingIndicatorPayload{IsTyping: true, IsFromSupport: true})
			send(domain.EventError, domain.ErrorPayload{Message: "Session not found"})
			send(domain.EventChatEnded, domain.EndedPayload{SessionID: "S1"})
		}
	}
}

func waitFor(t *testing.T, store *chatstore.Store, what string, cond func(chatstore.Snapshot) bool) chatstore.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := store.Snapshot()
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; state %+v", what, snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAgentAppliesRelayEvents(t *testing.T) {
	relay, url := newScriptedRelay(t)

	errs := make(chan string, 4)
	a := New(url, nil, WithErrorHandler(func(m string) { errs <- m }))
	defer a.Disconnect()

	if err := a.StartChat(context.Background(), "U1"); err != nil {
		t.Fatalf("StartChat: %v", err)
	}

	select {
	case env := <-relay.received:
		var req domain.StartRequest
		json.Unmarshal(env.Data, &req)
		if env.Event != domain.EventChatStart || req.UserID != "U1" {
			t.Fatalf("relay received %s %s", env.Event, env.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("relay received nothing")
	}

	snap := waitFor(t, a.Store(), "chat end", func(s chatstore.Snapshot) bool {
		return s.SessionID == "S1" && !s.IsChatActive
	})
	if len(snap.Messages) != 1 || snap.Messages[0].ID != "M1" {
		t.Fatalf("messages = %+v, want exactly one M1", snap.Messages)
	}
	if snap.IsTyping {
		t.Fatalf("chat end should clear the typing flag")
	}
	if !snap.IsConnected {
		t.Fatalf("agent should still be connected")
	}

	select {
	case m := <-errs:
		if m != "Session not found" {
			t.Fatalf("error callback got %q", m)
		}
	case <-time.After(time.Second):
		t.Fatalf("error callback not called")
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	relay, url := newScriptedRelay(t)
	a := New(url, nil)
	ctx := context.Background()

	if err := a.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := a.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if err := a.JoinChat(ctx, "S1"); err != nil {
		t.Fatalf("JoinChat: %v", err)
	}
	<-relay.received

	if n := len(relay.upgrades); n != 1 {
		t.Fatalf("relay saw %d connections, want 1", n)
	}
	if !a.Store().Snapshot().IsConnected {
		t.Fatalf("store should report connected")
	}

	if err := a.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := a.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
	if a.Connected() || a.Store().Snapshot().IsConnected {
		t.Fatalf("agent should be disconnected")
	}
}

func TestEmitRequiresConnection(t *testing.T) {
	a := New("ws://127.0.0.1:1/chat/ws", nil)

	for name, err := range map[string]error{
		"send":        a.SendMessage("S1", "hi", false),
		"typingStart": a.StartTyping("S1", false),
		"typingStop":  a.StopTyping("S1", false),
		"end":         a.EndChat("S1"),
	} {
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("%s = %v, want ErrNotConnected", name, err)
		}
	}
	if err := a.Disconnect(); err != nil {
		t.Fatalf("Disconnect when not connected: %v", err)
	}
}

func TestSendDoesNotEchoLocally(t *testing.T) {
	relay, url := newScriptedRelay(t)
	a := New(url, nil)
	defer a.Disconnect()

	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := a.SendMessage("S1", "hi", true); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	env := <-relay.received
	var req domain.SendRequest
	if err := json.Unmarshal(env.Data, &req); err != nil || req.Content != "hi" || !req.IsFromSupport {
		t.Fatalf("relay got %s %s", env.Event, env.Data)
	}
	if n := len(a.Store().Snapshot().Messages); n != 0 {
		t.Fatalf("store has %d messages before any broadcast", n)
	}
}

func TestDisconnectFromListenerOnChatEnded(t *testing.T) {
	_, url := newScriptedRelay(t)
	store := chatstore.New()
	a := New(url, store, WithErrorHandler(func(string) {}))

	returned := make(chan error, 1)
	store.Subscribe(func(s chatstore.Snapshot) {
		if s.SessionID == "S1" && !s.IsChatActive && s.IsConnected {
			returned <- a.Disconnect()
		}
	})

	if err := a.StartChat(context.Background(), "U1"); err != nil {
		t.Fatalf("StartChat: %v", err)
	}

	select {
	case <-returned:
	case <-time.After(3 * time.Second):
		t.Fatalf("Disconnect from a listener did not return")
	}

	waitFor(t, store, "disconnect", func(s chatstore.Snapshot) bool { return !s.IsConnected })
	if a.Connected() {
		t.Fatalf("agent still reports a connection")
	}
	if err := a.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
}
