// Command chat-client is a terminal participant for the support relay.
//
//	chat-client -user <userId>                 start a chat as the customer
//	chat-client -session <sessionId> -support  join a chat as support
//
// Each stdin line is sent as a message; "/end" ends the chat.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/yourcaryourway/support-chat/internal/agent"
	"github.com/yourcaryourway/support-chat/internal/chatstore"
	"github.com/yourcaryourway/support-chat/internal/domain"
	pkglog "github.com/yourcaryourway/support-chat/pkg/log"
)

func main() {
	url := flag.String("url", "ws://localhost:3001/chat/ws", "relay websocket url")
	userID := flag.String("user", "", "start a new chat for this user id")
	sessionID := flag.String("session", "", "join an existing session")
	support := flag.Bool("support", false, "send messages as support")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	pkglog.Init(pkglog.Config{Level: *logLevel, Pretty: true, ServiceName: "chat-client", Output: os.Stderr})
	logger := pkglog.L()

	if (*userID == "") == (*sessionID == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -user or -session is required")
		flag.Usage()
		os.Exit(2)
	}

	store := chatstore.New()
	a := agent.New(*url, store, agent.WithErrorHandler(relayErrors(store, os.Stderr)))

	unsubscribe := store.Subscribe(printer(os.Stdout))
	defer unsubscribe()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	if *userID != "" {
		err = a.StartChat(ctx, *userID)
	} else {
		// The relay does not acknowledge a join; a "Session not found"
		// reply clears the session again.
		store.SetSessionID(*sessionID)
		err = a.JoinChat(ctx, *sessionID)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to reach relay")
	}
	defer a.Disconnect()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !send(a, store, strings.TrimSpace(line), *support) {
				return
			}
		}
	}
}

// printer prints new messages and chat state changes.
func printer(w io.Writer) chatstore.Listener {
	printed := 0
	var wasActive bool
	return func(s chatstore.Snapshot) {
		if printed > len(s.Messages) {
			printed = 0
		}
		for _, m := range s.Messages[printed:] {
			who := "Client"
			if m.IsFromSupport {
				who = "Support"
			}
			fmt.Fprintf(w, "[%s] %s: %s\n", m.SentAt.Local().Format(time.TimeOnly), who, m.Content)
		}
		printed = len(s.Messages)
		if s.IsChatActive && !wasActive {
			fmt.Fprintf(w, "* chat %s is active\n", s.SessionID)
		}
		if !s.IsChatActive && wasActive && s.SessionID != "" {
			fmt.Fprintln(w, "* chat ended")
		}
		wasActive = s.IsChatActive
	}
}

// relayErrors prints relay errors. A session the relay does not know is
// dropped from the local state.
func relayErrors(store *chatstore.Store, w io.Writer) func(string) {
	return func(message string) {
		fmt.Fprintf(w, "! %s\n", message)
		if message == domain.ErrMsgSessionNotFound {
			store.ResetChat()
		}
	}
}

// send handles one input line and reports whether to keep reading.
func send(a *agent.Agent, store *chatstore.Store, line string, support bool) bool {
	snap := store.Snapshot()
	if !snap.IsConnected {
		fmt.Fprintln(os.Stderr, "! disconnected from relay")
		return false
	}
	if snap.SessionID == "" {
		fmt.Fprintln(os.Stderr, "! waiting for the session to start")
		return true
	}
	if line == "" {
		return true
	}

	if line == "/end" {
		if err := a.EndChat(snap.SessionID); err != nil {
			fmt.Fprintf(os.Stderr, "! %v\n", err)
		}
		return true
	}

	a.StartTyping(snap.SessionID, support)
	err := a.SendMessage(snap.SessionID, line, support)
	a.StopTyping(snap.SessionID, support)
	if err != nil {
		fmt.Fprintf(os.Stderr, "! %v\n", err)
	}
	return true
}
