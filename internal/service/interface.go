package service

import (
	"context"

	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/internal/hub"
	"github.com/yourcaryourway/support-chat/pkg/pubsub"
)

// RelayService handles inbound relay events. Every handler replies to the
// requester with an error event on failure and returns the cause.
type RelayService interface {
	HandleStart(ctx context.Context, client *hub.Client, req domain.StartRequest) error
	HandleJoin(ctx context.Context, client *hub.Client, req domain.JoinRequest) error
	HandleSend(ctx context.Context, client *hub.Client, req domain.SendRequest) error
	HandleTyping(ctx context.Context, client *hub.Client, req domain.TypingRequest, isTyping bool) error
	HandleEnd(ctx context.Context, client *hub.Client, req domain.EndRequest) error
	HandleDisconnect(ctx context.Context, client *hub.Client) error
	Start(ctx context.Context) error
	Stop() error
}

// SessionQueryService serves the open-session listing for support agents.
type SessionQueryService interface {
	ListOpenSessions(ctx context.Context) ([]domain.SessionSummary, error)
	// InvalidateOnEvents drops the cached listing whenever a session
	// lifecycle event arrives. It blocks until ctx is done.
	InvalidateOnEvents(ctx context.Context, sub pubsub.Subscriber) error
}
