package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourcaryourway/support-chat/internal/agent"
	"github.com/yourcaryourway/support-chat/internal/chatstore"
	"github.com/yourcaryourway/support-chat/internal/config"
	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/internal/hub"
	"github.com/yourcaryourway/support-chat/internal/idgen"
	"github.com/yourcaryourway/support-chat/internal/repository"
	"github.com/yourcaryourway/support-chat/internal/service"
	"github.com/yourcaryourway/support-chat/internal/testutil"
)

type relayFixture struct {
	url  string
	hub  *hub.Hub
	repo repository.ChatRepository
}

func newRelay(t *testing.T) *relayFixture {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	testutil.SeedUser(t, db, "U1", "client@example.com")

	wsCfg := config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       2 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 16384,
		SendBuffer:     64,
		DispatchQueue:  64,
	}
	h := hub.NewHub()
	repo := repository.NewGormChatRepository(db)
	svc := service.NewRelayService(h, repo, idgen.NewUUIDGenerator(), idgen.NewULIDGenerator(), nil, nil, nil, "test:0")
	ws := NewWSHandler(h, svc, wsCfg)

	ctx, cancel := context.WithCancel(context.Background())
	go ws.Run(ctx)

	mux := http.NewServeMux()
	ws.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return &relayFixture{
		url:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws",
		hub:  h,
		repo: repo,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// typingLog records every distinct typing flag a store reports.
type typingLog struct {
	mu     sync.Mutex
	values []bool
}

func (l *typingLog) listen(s chatstore.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.values); n == 0 || l.values[n-1] != s.IsTyping {
		l.values = append(l.values, s.IsTyping)
	}
}

func (l *typingLog) get() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.values...)
}

func TestChatRoundTrip(t *testing.T) {
	r := newRelay(t)
	ctx := context.Background()

	client := agent.New(r.url, nil)
	support := agent.New(r.url, nil)
	defer client.Disconnect()
	defer support.Disconnect()

	var clientTyping, supportTyping typingLog
	client.Store().Subscribe(clientTyping.listen)
	support.Store().Subscribe(supportTyping.listen)

	if err := client.StartChat(ctx, "U1"); err != nil {
		t.Fatalf("StartChat: %v", err)
	}
	waitFor(t, "chat:started", func() bool { return client.Store().Snapshot().SessionID != "" })
	sessionID := client.Store().Snapshot().SessionID

	if err := support.JoinChat(ctx, sessionID); err != nil {
		t.Fatalf("JoinChat: %v", err)
	}
	waitFor(t, "support in room", func() bool { return len(r.hub.Members(sessionID)) == 2 })

	session, err := r.repo.GetSession(ctx, sessionID)
	if err != nil || session.Status != domain.StatusActive {
		t.Fatalf("after join: %+v, %v", session, err)
	}

	if err := support.StartTyping(sessionID, true); err != nil {
		t.Fatalf("StartTyping: %v", err)
	}
	if err := support.StopTyping(sessionID, true); err != nil {
		t.Fatalf("StopTyping: %v", err)
	}
	if err := client.SendMessage(sessionID, "hello", false); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	for name, a := range map[string]*agent.Agent{"client": client, "support": support} {
		waitFor(t, name+" message", func() bool { return len(a.Store().Snapshot().Messages) == 1 })
		got := a.Store().Snapshot().Messages[0]
		if got.Content != "hello" || got.IsFromSupport || got.ID == "" {
			t.Fatalf("%s received %+v", name, got)
		}
	}

	waitFor(t, "typing indicators", func() bool { return len(clientTyping.get()) >= 3 })
	if got := clientTyping.get(); len(got) != 3 || got[0] || !got[1] || got[2] {
		t.Fatalf("client typing sequence = %v, want [false true false]", got)
	}
	if got := supportTyping.get(); len(got) != 1 || got[0] {
		t.Fatalf("typing was echoed to sender: %v", got)
	}

	if err := client.EndChat(sessionID); err != nil {
		t.Fatalf("EndChat: %v", err)
	}
	for name, a := range map[string]*agent.Agent{"client": client, "support": support} {
		waitFor(t, name+" chat:ended", func() bool { return !a.Store().Snapshot().IsChatActive })
	}
	if !client.Store().Snapshot().IsConnected {
		t.Fatalf("client should stay connected after end")
	}

	session, err = r.repo.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	msg := client.Store().Snapshot().Messages[0]
	want := "[" + msg.SentAt.UTC().Format(domain.TranscriptTimeLayout) + "] Client: hello"
	if session.Status != domain.StatusEnded || session.EndedAt == nil || session.Transcript == nil || *session.Transcript != want {
		t.Fatalf("ended session = %+v (transcript %v), want transcript %q", session, session.Transcript, want)
	}
}

func TestJoinUnknownSessionReportsError(t *testing.T) {
	r := newRelay(t)

	errs := make(chan string, 1)
	a := agent.New(r.url, nil, agent.WithErrorHandler(func(m string) { errs <- m }))
	defer a.Disconnect()

	if err := a.JoinChat(context.Background(), "does-not-exist"); err != nil {
		t.Fatalf("JoinChat: %v", err)
	}
	select {
	case m := <-errs:
		if m != domain.ErrMsgSessionNotFound {
			t.Fatalf("error = %q", m)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no error event")
	}
	if r.hub.RoomCount() != 0 {
		t.Fatalf("unknown session must not create a room")
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env domain.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func TestMalformedAndUnknownFrames(t *testing.T) {
	r := newRelay(t)

	conn, _, err := websocket.DefaultDialer.Dial(r.url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	cases := []struct {
		frame string
		want  string
	}{
		{`not json`, domain.ErrMsgInvalidFormat},
		{`{"data":{}}`, domain.ErrMsgInvalidFormat},
		{`{"event":"chat:start","data":"U1"}`, domain.ErrMsgInvalidFormat},
		{`{"event":"chat:join"}`, domain.ErrMsgInvalidFormat},
		{`{"event":"chat:delete","data":{}}`, domain.ErrMsgUnknownEvent},
	}
	for _, tc := range cases {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tc.frame)); err != nil {
			t.Fatalf("write: %v", err)
		}
		env := readEvent(t, conn)
		var p domain.ErrorPayload
		json.Unmarshal(env.Data, &p)
		if env.Event != domain.EventError || p.Message != tc.want {
			t.Fatalf("%s -> %s %s, want error %q", tc.frame, env.Event, env.Data, tc.want)
		}
	}
}

func TestDisconnectDropsMembership(t *testing.T) {
	r := newRelay(t)
	a := agent.New(r.url, nil)

	if err := a.StartChat(context.Background(), "U1"); err != nil {
		t.Fatalf("StartChat: %v", err)
	}
	waitFor(t, "chat:started", func() bool { return a.Store().Snapshot().SessionID != "" })
	sessionID := a.Store().Snapshot().SessionID

	a.Disconnect()
	waitFor(t, "room released", func() bool { return r.hub.RoomCount() == 0 && r.hub.ClientCount() == 0 })

	session, err := r.repo.GetSession(context.Background(), sessionID)
	if err != nil || session.Status != domain.StatusWaiting {
		t.Fatalf("disconnect changed the session: %+v, %v", session, err)
	}
}

func TestCheckOrigin(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/chat/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	allowAll := checkOrigin(nil)
	if !allowAll(req("https://evil.example")) {
		t.Fatalf("empty list should allow every origin")
	}

	check := checkOrigin([]string{"http://localhost:4200/", "https://app.yourcaryourway.com"})
	for origin, want := range map[string]bool{
		"http://localhost:4200":          true,
		"https://app.yourcaryourway.com": true,
		"https://evil.example":           false,
		"":                               true,
	} {
		if got := check(req(origin)); got != want {
			t.Errorf("origin %q allowed = %v, want %v", origin, got, want)
		}
	}
}
